package repository

import (
	"context"
	"errors"

	"github.com/gdeblander/billing-engine/internal/domain"
	"gorm.io/gorm"
)

// BatchRepository persists invoice batch runs.
type BatchRepository interface {
	Create(ctx context.Context, b *domain.InvoiceBatch) error
	Update(ctx context.Context, b *domain.InvoiceBatch) error
	GetByID(ctx context.Context, id string) (*domain.InvoiceBatch, error)
	// LatestByMonth returns the most recently started batch for a month.
	LatestByMonth(ctx context.Context, monthYear string) (*domain.InvoiceBatch, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.InvoiceBatch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) Update(ctx context.Context, b *domain.InvoiceBatch) error {
	model := batchModelFromDomain(b)
	result := r.db.WithContext(ctx).
		Model(&InvoiceBatchModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status":          model.Status,
			"total_invoices":  model.TotalInvoices,
			"succeeded_count": model.SucceededCount,
			"failed_count":    model.FailedCount,
			"skipped_count":   model.SkippedCount,
			"completed_at":    model.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.InvoiceBatch, error) {
	var model InvoiceBatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) LatestByMonth(ctx context.Context, monthYear string) (*domain.InvoiceBatch, error) {
	var model InvoiceBatchModel
	err := r.db.WithContext(ctx).
		Where("month_year = ?", monthYear).
		Order("started_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}
