package repository

import (
	"encoding/json"
	"time"

	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// InvoiceBatchModel is the persistence model for the invoice_batches table.
type InvoiceBatchModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	MonthYear      string             `gorm:"type:varchar(7);not null;index"`
	Status         domain.BatchStatus `gorm:"type:varchar(32);not null"`
	DryRun         bool               `gorm:"not null;default:false"`
	TotalInvoices  int                `gorm:"not null;default:0"`
	SucceededCount int                `gorm:"not null;default:0"`
	FailedCount    int                `gorm:"not null;default:0"`
	SkippedCount   int                `gorm:"not null;default:0"`
	StartedAt      time.Time          `gorm:"not null"`
	CompletedAt    *time.Time
}

func (InvoiceBatchModel) TableName() string {
	return "invoice_batches"
}

// InvoiceModel is the persistence model for the invoices table. A partial
// unique index on (recipient_type, recipient_id, billing_period_start) where
// status <> 'cancelled' enforces the idempotency key.
type InvoiceModel struct {
	ID                 string               `gorm:"type:uuid;primaryKey"`
	BatchID            *string              `gorm:"type:uuid;index"`
	InvoiceNumber      string               `gorm:"type:varchar(32);not null;uniqueIndex"`
	RecipientType      domain.RecipientType `gorm:"type:varchar(16);not null"`
	RecipientID        string               `gorm:"type:uuid;not null"`
	BillingPeriodStart time.Time            `gorm:"type:date;not null"`
	BillingPeriodEnd   time.Time            `gorm:"type:date;not null"`
	Currency           string               `gorm:"type:varchar(3);not null;default:'EUR'"`
	SubtotalHtva       int64                `gorm:"not null"`
	VatRate            decimal.Decimal      `gorm:"type:numeric(6,4);not null"`
	VatAmount          int64                `gorm:"not null"`
	TotalTtc           int64                `gorm:"not null"`
	Status             domain.InvoiceStatus `gorm:"type:varchar(16);not null"`
	DueDate            time.Time            `gorm:"type:date;not null"`
	ConfirmedAt        *time.Time
	SentAt             *time.Time
	PaidAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceItemModel is the persistence model for the invoice_items table.
type InvoiceItemModel struct {
	ID                 string          `gorm:"type:uuid;primaryKey"`
	InvoiceID          string          `gorm:"type:uuid;not null;index"`
	ItemType           domain.ItemType `gorm:"type:varchar(32);not null"`
	ModuleID           *string         `gorm:"type:uuid"`
	AdjustmentID       *string         `gorm:"type:uuid"`
	Label              []byte          `gorm:"type:jsonb"`
	BeneficiariesCount *int
	Quantity           int             `gorm:"not null"`
	UnitPriceHtva      int64           `gorm:"not null"`
	ProrataPercentage  decimal.Decimal `gorm:"type:numeric(5,4);not null"`
	ProrataDays        *int
	TotalDays          *int
	SubtotalHtva       int64           `gorm:"not null"`
	VatRate            decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	VatAmount          int64           `gorm:"not null"`
	TotalTtc           int64           `gorm:"not null"`
	CreatedAt          time.Time
}

func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// InvoiceSequenceModel backs monotonic invoice number allocation, one row per
// calendar year, locked FOR UPDATE during allocation.
type InvoiceSequenceModel struct {
	Year      int `gorm:"primaryKey;autoIncrement:false"`
	LastValue int `gorm:"not null;default:0"`
}

func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}

// CreditAdjustmentModel is the persistence model for credit_adjustments.
type CreditAdjustmentModel struct {
	ID            string               `gorm:"type:uuid;primaryKey"`
	RecipientType domain.RecipientType `gorm:"type:varchar(16);not null;index:idx_credit_adjustments_recipient"`
	RecipientID   string               `gorm:"type:uuid;not null;index:idx_credit_adjustments_recipient"`
	InvoiceID     *string              `gorm:"type:uuid"`
	Amount        int64                `gorm:"not null"`
	Reason        *string              `gorm:"type:text"`
	Status        domain.CreditStatus  `gorm:"type:varchar(16);not null"`
	AppliedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (CreditAdjustmentModel) TableName() string {
	return "credit_adjustments"
}

// DivisionModel is the persistence model for the divisions directory table.
type DivisionModel struct {
	ID                string           `gorm:"type:uuid;primaryKey"`
	Name              string           `gorm:"type:varchar(255);not null"`
	Country           string           `gorm:"type:varchar(2);not null"`
	Currency          string           `gorm:"type:varchar(3);not null;default:'EUR'"`
	Status            string           `gorm:"type:varchar(16);not null;index"`
	CorePackagePrice  int64            `gorm:"not null;default:0"`
	VatRateOverride   *decimal.Decimal `gorm:"type:numeric(6,4)"`
	ContractStartDate *time.Time       `gorm:"type:date"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (DivisionModel) TableName() string {
	return "divisions"
}

// FinancerModel is the persistence model for the financers directory table.
// A nil CorePackagePrice falls back to the division's price.
type FinancerModel struct {
	ID                string           `gorm:"type:uuid;primaryKey"`
	DivisionID        string           `gorm:"type:uuid;not null;index"`
	Name              string           `gorm:"type:varchar(255);not null"`
	Country           string           `gorm:"type:varchar(2);not null"`
	Currency          string           `gorm:"type:varchar(3);not null;default:'EUR'"`
	Status            string           `gorm:"type:varchar(16);not null;index"`
	CorePackagePrice  *int64
	VatRateOverride   *decimal.Decimal `gorm:"type:numeric(6,4)"`
	ContractStartDate *time.Time       `gorm:"type:date"`
	BeneficiaryCount  int              `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (FinancerModel) TableName() string {
	return "financers"
}

// FinancerModuleModel is the pivot of modules activated for a financer with
// their per-beneficiary pricing and activation window.
type FinancerModuleModel struct {
	ID                  string     `gorm:"type:uuid;primaryKey"`
	FinancerID          string     `gorm:"type:uuid;not null;index"`
	ModuleID            string     `gorm:"type:uuid;not null"`
	LabelEn             string     `gorm:"type:varchar(255);not null"`
	LabelFr             string     `gorm:"type:varchar(255);not null"`
	PricePerBeneficiary int64      `gorm:"not null"`
	Active              bool       `gorm:"not null;default:true"`
	ActivatedAt         *time.Time `gorm:"type:date"`
	DeactivatedAt       *time.Time `gorm:"type:date"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (FinancerModuleModel) TableName() string {
	return "financer_modules"
}

func batchModelFromDomain(b *domain.InvoiceBatch) *InvoiceBatchModel {
	if b == nil {
		return nil
	}

	return &InvoiceBatchModel{
		ID:             b.ID,
		MonthYear:      b.MonthYear,
		Status:         b.Status,
		DryRun:         b.DryRun,
		TotalInvoices:  b.TotalInvoices,
		SucceededCount: b.SucceededCount,
		FailedCount:    b.FailedCount,
		SkippedCount:   b.SkippedCount,
		StartedAt:      b.StartedAt,
		CompletedAt:    b.CompletedAt,
	}
}

func batchModelToDomain(m *InvoiceBatchModel) *domain.InvoiceBatch {
	if m == nil {
		return nil
	}

	return &domain.InvoiceBatch{
		ID:             m.ID,
		MonthYear:      m.MonthYear,
		Status:         m.Status,
		DryRun:         m.DryRun,
		TotalInvoices:  m.TotalInvoices,
		SucceededCount: m.SucceededCount,
		FailedCount:    m.FailedCount,
		SkippedCount:   m.SkippedCount,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}
}

func invoiceModelFromDomain(inv *domain.Invoice) *InvoiceModel {
	if inv == nil {
		return nil
	}

	return &InvoiceModel{
		ID:                 inv.ID,
		BatchID:            inv.BatchID,
		InvoiceNumber:      inv.InvoiceNumber,
		RecipientType:      inv.RecipientType,
		RecipientID:        inv.RecipientID,
		BillingPeriodStart: inv.BillingPeriodStart,
		BillingPeriodEnd:   inv.BillingPeriodEnd,
		Currency:           inv.Currency,
		SubtotalHtva:       inv.SubtotalHtva,
		VatRate:            inv.VatRate,
		VatAmount:          inv.VatAmount,
		TotalTtc:           inv.TotalTtc,
		Status:             inv.Status,
		DueDate:            inv.DueDate,
		ConfirmedAt:        inv.ConfirmedAt,
		SentAt:             inv.SentAt,
		PaidAt:             inv.PaidAt,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

func invoiceModelToDomain(m *InvoiceModel) *domain.Invoice {
	if m == nil {
		return nil
	}

	return &domain.Invoice{
		ID:                 m.ID,
		BatchID:            m.BatchID,
		InvoiceNumber:      m.InvoiceNumber,
		RecipientType:      m.RecipientType,
		RecipientID:        m.RecipientID,
		BillingPeriodStart: m.BillingPeriodStart,
		BillingPeriodEnd:   m.BillingPeriodEnd,
		Currency:           m.Currency,
		SubtotalHtva:       m.SubtotalHtva,
		VatRate:            m.VatRate,
		VatAmount:          m.VatAmount,
		TotalTtc:           m.TotalTtc,
		Status:             m.Status,
		DueDate:            m.DueDate,
		ConfirmedAt:        m.ConfirmedAt,
		SentAt:             m.SentAt,
		PaidAt:             m.PaidAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func itemModelFromDomain(item *domain.InvoiceItem) *InvoiceItemModel {
	if item == nil {
		return nil
	}

	var label []byte
	if len(item.Label) > 0 {
		label, _ = json.Marshal(item.Label)
	}

	return &InvoiceItemModel{
		ID:                 item.ID,
		InvoiceID:          item.InvoiceID,
		ItemType:           item.ItemType,
		ModuleID:           item.ModuleID,
		AdjustmentID:       item.AdjustmentID,
		Label:              label,
		BeneficiariesCount: item.BeneficiariesCount,
		Quantity:           item.Quantity,
		UnitPriceHtva:      item.UnitPriceHtva,
		ProrataPercentage:  item.ProrataPercentage,
		ProrataDays:        item.ProrataDays,
		TotalDays:          item.TotalDays,
		SubtotalHtva:       item.SubtotalHtva,
		VatRate:            item.VatRate,
		VatAmount:          item.VatAmount,
		TotalTtc:           item.TotalTtc,
		CreatedAt:          item.CreatedAt,
	}
}

func itemModelToDomain(m *InvoiceItemModel) *domain.InvoiceItem {
	if m == nil {
		return nil
	}

	var label map[string]string
	if len(m.Label) > 0 {
		_ = json.Unmarshal(m.Label, &label)
	}

	return &domain.InvoiceItem{
		ID:                 m.ID,
		InvoiceID:          m.InvoiceID,
		ItemType:           m.ItemType,
		ModuleID:           m.ModuleID,
		AdjustmentID:       m.AdjustmentID,
		Label:              label,
		BeneficiariesCount: m.BeneficiariesCount,
		Quantity:           m.Quantity,
		UnitPriceHtva:      m.UnitPriceHtva,
		ProrataPercentage:  m.ProrataPercentage,
		ProrataDays:        m.ProrataDays,
		TotalDays:          m.TotalDays,
		SubtotalHtva:       m.SubtotalHtva,
		VatRate:            m.VatRate,
		VatAmount:          m.VatAmount,
		TotalTtc:           m.TotalTtc,
		CreatedAt:          m.CreatedAt,
	}
}

func creditModelFromDomain(c *domain.CreditAdjustment) *CreditAdjustmentModel {
	if c == nil {
		return nil
	}

	return &CreditAdjustmentModel{
		ID:            c.ID,
		RecipientType: c.RecipientType,
		RecipientID:   c.RecipientID,
		InvoiceID:     c.InvoiceID,
		Amount:        c.Amount,
		Reason:        c.Reason,
		Status:        c.Status,
		AppliedAt:     c.AppliedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func creditModelToDomain(m *CreditAdjustmentModel) *domain.CreditAdjustment {
	if m == nil {
		return nil
	}

	return &domain.CreditAdjustment{
		ID:            m.ID,
		RecipientType: m.RecipientType,
		RecipientID:   m.RecipientID,
		InvoiceID:     m.InvoiceID,
		Amount:        m.Amount,
		Reason:        m.Reason,
		Status:        m.Status,
		AppliedAt:     m.AppliedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
