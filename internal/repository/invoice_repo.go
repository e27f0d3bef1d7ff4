package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdeblander/billing-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository persists invoices and their items.
type InvoiceRepository interface {
	// CreateWithItems allocates the invoice number and inserts the invoice,
	// all items, and the consumption of the given pending credits in one
	// transaction; a credit that is no longer pending rolls everything back
	// with domain.ErrConflict. Returns domain.ErrDuplicateInvoice when a
	// non-cancelled invoice already exists for the recipient and period.
	CreateWithItems(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem, creditIDs []string) error
	// ExistsForPeriod reports whether a non-cancelled invoice exists for the
	// recipient and billing period start (the idempotency key).
	ExistsForPeriod(ctx context.Context, rt domain.RecipientType, recipientID string, periodStart time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Invoice, []domain.InvoiceItem, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.Invoice, error)
}

type GormInvoiceRepo struct {
	db *gorm.DB
}

func NewGormInvoiceRepo(db *gorm.DB) *GormInvoiceRepo {
	return &GormInvoiceRepo{db: db}
}

func (r *GormInvoiceRepo) CreateWithItems(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem, creditIDs []string) error {
	model := invoiceModelFromDomain(inv)
	itemModels := make([]InvoiceItemModel, 0, len(items))
	for i := range items {
		itemModels = append(itemModels, *itemModelFromDomain(&items[i]))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextInvoiceNumber(tx, model.BillingPeriodEnd.Year())
		if err != nil {
			return err
		}
		model.InvoiceNumber = number

		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(itemModels) > 0 {
			if err := tx.Create(&itemModels).Error; err != nil {
				return err
			}
		}
		return consumeCredits(tx, creditIDs, model.ID, model.CreatedAt)
	})
	if err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%w: %s %s period %s", domain.ErrDuplicateInvoice,
				inv.RecipientType, inv.RecipientID, inv.BillingPeriodStart.Format(time.DateOnly))
		}
		return err
	}

	if inv != nil {
		*inv = *invoiceModelToDomain(model)
	}
	for i := range itemModels {
		items[i] = *itemModelToDomain(&itemModels[i])
	}
	return nil
}

func (r *GormInvoiceRepo) ExistsForPeriod(ctx context.Context, rt domain.RecipientType, recipientID string, periodStart time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&InvoiceModel{}).
		Where("recipient_type = ? AND recipient_id = ? AND billing_period_start = ? AND status <> ?",
			rt, recipientID, periodStart, domain.InvoiceStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormInvoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, []domain.InvoiceItem, error) {
	var model InvoiceModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var itemModels []InvoiceItemModel
	err = r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("created_at ASC").
		Find(&itemModels).Error
	if err != nil {
		return nil, nil, err
	}

	items := make([]domain.InvoiceItem, 0, len(itemModels))
	for i := range itemModels {
		items = append(items, *itemModelToDomain(&itemModels[i]))
	}
	return invoiceModelToDomain(&model), items, nil
}

func (r *GormInvoiceRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.Invoice, error) {
	var models []InvoiceModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(models))
	for i := range models {
		invoices = append(invoices, *invoiceModelToDomain(&models[i]))
	}
	return invoices, nil
}

// nextInvoiceNumber allocates the next FAC-<year>-<NNNNN> number. The per-year
// sequence row is created on first use and locked FOR UPDATE so numbers stay
// monotonic under concurrent workers.
func nextInvoiceNumber(tx *gorm.DB, year int) (string, error) {
	seed := InvoiceSequenceModel{Year: year, LastValue: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("failed to seed invoice sequence for %d: %w", year, err)
	}

	var seq InvoiceSequenceModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).
		First(&seq).Error
	if err != nil {
		return "", fmt.Errorf("failed to lock invoice sequence for %d: %w", year, err)
	}

	seq.LastValue++
	if err := tx.Save(&seq).Error; err != nil {
		return "", fmt.Errorf("failed to advance invoice sequence for %d: %w", year, err)
	}

	return fmt.Sprintf("FAC-%d-%05d", year, seq.LastValue), nil
}

// consumeCredits flips pending credits to applied on the invoice, inside the
// invoice's own transaction so a partial consumption rolls the invoice back.
func consumeCredits(tx *gorm.DB, creditIDs []string, invoiceID string, appliedAt time.Time) error {
	if len(creditIDs) == 0 {
		return nil
	}

	result := tx.Model(&CreditAdjustmentModel{}).
		Where("id IN ? AND status = ?", creditIDs, domain.CreditStatusPending).
		Updates(map[string]any{
			"status":     domain.CreditStatusApplied,
			"invoice_id": invoiceID,
			"applied_at": appliedAt,
			"updated_at": appliedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to consume credits: %w", result.Error)
	}
	if result.RowsAffected != int64(len(creditIDs)) {
		return fmt.Errorf("%w: consumed %d of %d pending credits",
			domain.ErrConflict, result.RowsAffected, len(creditIDs))
	}
	return nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
