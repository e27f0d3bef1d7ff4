package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecipientType identifies the kind of billable entity an invoice targets.
type RecipientType string

const (
	RecipientDivision RecipientType = "division"
	RecipientFinancer RecipientType = "financer"
)

func (r RecipientType) String() string { return string(r) }

func (r RecipientType) IsValid() bool {
	switch r {
	case RecipientDivision, RecipientFinancer:
		return true
	}
	return false
}

func ParseRecipientTypeFromString(s string) (RecipientType, error) {
	rt := RecipientType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.IsValid() {
		return "", fmt.Errorf("%w: invalid recipient type %q", ErrValidation, s)
	}
	return rt, nil
}

// InvoiceStatus represents the lifecycle state of an invoice. The batch
// engine only creates invoices in draft; later transitions happen in the
// billing collaborator.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusConfirmed InvoiceStatus = "confirmed"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) String() string { return string(s) }

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusConfirmed, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// BlocksReinvoicing reports whether an existing invoice in this status
// prevents a new invoice for the same recipient and period. Every status
// except cancelled blocks; credit notes for paid periods go through credit
// adjustments instead of a second invoice.
func (s InvoiceStatus) BlocksReinvoicing() bool {
	return s != InvoiceStatusCancelled
}

func ParseInvoiceStatusFromString(s string) (InvoiceStatus, error) {
	st := InvoiceStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid invoice status %q", ErrValidation, s)
	}
	return st, nil
}

// ItemType identifies what an invoice line bills for.
type ItemType string

const (
	ItemCorePackage      ItemType = "core_package"
	ItemModule           ItemType = "module"
	ItemCreditAdjustment ItemType = "credit_adjustment"
)

func (t ItemType) String() string { return string(t) }

func (t ItemType) IsValid() bool {
	switch t {
	case ItemCorePackage, ItemModule, ItemCreditAdjustment:
		return true
	}
	return false
}

// Invoice is one billing document for a recipient and period. All monetary
// amounts are integer minor units (cents).
type Invoice struct {
	ID                 string
	BatchID            *string
	InvoiceNumber      string
	RecipientType      RecipientType
	RecipientID        string
	BillingPeriodStart time.Time
	BillingPeriodEnd   time.Time
	Currency           string
	SubtotalHtva       int64
	VatRate            decimal.Decimal
	VatAmount          int64
	TotalTtc           int64
	Status             InvoiceStatus
	DueDate            time.Time
	ConfirmedAt        *time.Time
	SentAt             *time.Time
	PaidAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID                 string
	InvoiceID          string
	ItemType           ItemType
	ModuleID           *string
	AdjustmentID       *string
	Label              map[string]string
	BeneficiariesCount *int
	Quantity           int
	UnitPriceHtva      int64
	ProrataPercentage  decimal.Decimal
	ProrataDays        *int
	TotalDays          *int
	SubtotalHtva       int64
	VatRate            decimal.Decimal
	VatAmount          int64
	TotalTtc           int64
	CreatedAt          time.Time
}

// CreateInvoice is the immutable output of the invoice builder: a fully
// computed invoice that has not been persisted yet.
type CreateInvoice struct {
	RecipientType      RecipientType
	RecipientID        string
	BillingPeriodStart time.Time
	BillingPeriodEnd   time.Time
	Currency           string
	VatRate            decimal.Decimal
	SubtotalHtva       int64
	VatAmount          int64
	TotalTtc           int64
	Items              []CreateInvoiceItem
}

// CreateInvoiceItem is one computed line inside a CreateInvoice.
type CreateInvoiceItem struct {
	ItemType           ItemType
	ModuleID           *string
	AdjustmentID       *string
	Label              map[string]string
	BeneficiariesCount *int
	Quantity           int
	UnitPriceHtva      int64
	ProrataPercentage  decimal.Decimal
	ProrataDays        *int
	TotalDays          *int
	SubtotalHtva       int64
	VatRate            decimal.Decimal
	VatAmount          int64
	TotalTtc           int64
}
