package repository

import (
	"context"

	"github.com/gdeblander/billing-engine/internal/domain"
	"gorm.io/gorm"
)

// CreditRepository persists credit adjustments.
type CreditRepository interface {
	Create(ctx context.Context, c *domain.CreditAdjustment) error
	// PendingForRecipient lists credits reserved for the recipient's next
	// invoice, oldest first. Consumption happens inside the invoice
	// transaction, see InvoiceRepository.CreateWithItems.
	PendingForRecipient(ctx context.Context, rt domain.RecipientType, recipientID string) ([]domain.CreditAdjustment, error)
}

type GormCreditRepo struct {
	db *gorm.DB
}

func NewGormCreditRepo(db *gorm.DB) *GormCreditRepo {
	return &GormCreditRepo{db: db}
}

func (r *GormCreditRepo) Create(ctx context.Context, c *domain.CreditAdjustment) error {
	model := creditModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *creditModelToDomain(model)
	}
	return nil
}

func (r *GormCreditRepo) PendingForRecipient(ctx context.Context, rt domain.RecipientType, recipientID string) ([]domain.CreditAdjustment, error) {
	var models []CreditAdjustmentModel
	err := r.db.WithContext(ctx).
		Where("recipient_type = ? AND recipient_id = ? AND status = ?", rt, recipientID, domain.CreditStatusPending).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	credits := make([]domain.CreditAdjustment, 0, len(models))
	for i := range models {
		credits = append(credits, *creditModelToDomain(&models[i]))
	}
	return credits, nil
}
