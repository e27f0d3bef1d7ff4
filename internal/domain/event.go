package domain

import "time"

// Event type names as stored in the audit log.
const (
	EventBatchStarted     = "batch_started"
	EventBatchCompleted   = "batch_completed"
	EventInvoiceGenerated = "invoice_generated"
	EventInvoiceCompleted = "invoice_completed"
	EventInvoiceFailed    = "invoice_failed"
	EventCreditApplied    = "credit_applied"
)

// BatchStartedEvent opens the audit trail of a batch run.
type BatchStartedEvent struct {
	BatchID       string    `json:"batchId"`
	MonthYear     string    `json:"monthYear"`
	TotalInvoices int       `json:"totalInvoices"`
	DryRun        bool      `json:"dryRun"`
	StartedAt     time.Time `json:"startedAt"`
}

// BatchCompletedEvent closes the audit trail of a batch run.
type BatchCompletedEvent struct {
	BatchID        string      `json:"batchId"`
	Status         BatchStatus `json:"status"`
	SucceededCount int         `json:"succeededCount"`
	FailedCount    int         `json:"failedCount"`
	SkippedCount   int         `json:"skippedCount"`
	CompletedAt    time.Time   `json:"completedAt"`
}

// InvoiceGeneratedEvent records a newly computed invoice on the invoice
// aggregate.
type InvoiceGeneratedEvent struct {
	BatchID       string        `json:"batchId"`
	InvoiceID     string        `json:"invoiceId"`
	InvoiceNumber string        `json:"invoiceNumber"`
	RecipientType RecipientType `json:"recipientType"`
	RecipientID   string        `json:"recipientId"`
	TotalTtc      int64         `json:"totalTtc"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// InvoiceCompletedEvent records a successful per-recipient step on the batch
// aggregate.
type InvoiceCompletedEvent struct {
	BatchID     string    `json:"batchId"`
	InvoiceID   string    `json:"invoiceId"`
	CompletedAt time.Time `json:"completedAt"`
}

// InvoiceFailedEvent records a per-recipient failure on the batch aggregate.
// InvoiceID is empty when the failure happened before an id was assigned.
type InvoiceFailedEvent struct {
	BatchID       string        `json:"batchId"`
	InvoiceID     string        `json:"invoiceId,omitempty"`
	RecipientType RecipientType `json:"recipientType"`
	RecipientID   string        `json:"recipientId"`
	Error         string        `json:"error"`
	FailedAt      time.Time     `json:"failedAt"`
}

// CreditAppliedEvent records a credit adjustment being granted or consumed.
type CreditAppliedEvent struct {
	AdjustmentID  string        `json:"adjustmentId"`
	RecipientType RecipientType `json:"recipientType"`
	RecipientID   string        `json:"recipientId"`
	InvoiceID     *string       `json:"invoiceId,omitempty"`
	CreditAmount  int64         `json:"creditAmount"`
	Reason        *string       `json:"reason,omitempty"`
	AppliedAt     time.Time     `json:"appliedAt"`
}
