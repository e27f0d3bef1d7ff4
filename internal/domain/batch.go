package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the processing state of an invoice batch.
type BatchStatus string

const (
	BatchStatusRunning             BatchStatus = "running"
	BatchStatusCompleted           BatchStatus = "completed"
	BatchStatusCompletedWithErrors BatchStatus = "completed_with_errors"
	BatchStatusFailed              BatchStatus = "failed"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusRunning, BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the batch has finished; terminal batches are
// never mutated again.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed:
		return true
	}
	return false
}

// InvoiceBatch is one execution of the orchestrator covering many recipients
// for a single billing month.
type InvoiceBatch struct {
	ID             string
	MonthYear      string
	Status         BatchStatus
	DryRun         bool
	TotalInvoices  int
	SucceededCount int
	FailedCount    int
	SkippedCount   int
	StartedAt      time.Time
	CompletedAt    *time.Time
}

const monthYearLayout = "2006-01"

// ParseMonthYear turns a "YYYY-MM" string into the billing period bounds:
// first day of the month and last day of the month, both at midnight UTC.
func ParseMonthYear(monthYear string) (time.Time, time.Time, error) {
	start, err := time.Parse(monthYearLayout, strings.TrimSpace(monthYear))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid month-year %q, expected YYYY-MM", ErrValidation, monthYear)
	}
	end := start.AddDate(0, 1, -1)
	return start, end, nil
}

// FormatMonthYear renders a time as the canonical "YYYY-MM" batch month.
func FormatMonthYear(t time.Time) string {
	return t.Format(monthYearLayout)
}
