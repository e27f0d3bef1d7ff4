package domain

import (
	"fmt"
	"strings"
	"time"
)

// CreditStatus represents the lifecycle state of a credit adjustment.
type CreditStatus string

const (
	// CreditStatusPending marks a credit reserved for the recipient's next
	// generated invoice.
	CreditStatusPending CreditStatus = "pending"
	// CreditStatusApplied marks a credit already consumed, either standalone
	// or as a line on an invoice.
	CreditStatusApplied CreditStatus = "applied"
)

func (s CreditStatus) String() string { return string(s) }

func (s CreditStatus) IsValid() bool {
	switch s {
	case CreditStatusPending, CreditStatusApplied:
		return true
	}
	return false
}

// CreditAdjustment is a monetary credit granted to a recipient. Amount is a
// positive value in minor units; it reduces invoice totals when consumed.
type CreditAdjustment struct {
	ID            string
	RecipientType RecipientType
	RecipientID   string
	InvoiceID     *string
	Amount        int64
	Reason        *string
	Status        CreditStatus
	AppliedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *CreditAdjustment) Validate() error {
	if !c.RecipientType.IsValid() {
		return fmt.Errorf("%w: invalid recipient type %q", ErrValidation, c.RecipientType)
	}
	if strings.TrimSpace(c.RecipientID) == "" {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if c.Amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive, got %d", ErrValidation, c.Amount)
	}
	return nil
}
