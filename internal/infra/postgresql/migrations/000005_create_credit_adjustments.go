package migrations

import (
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createCreditAdjustmentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_credit_adjustments",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CreditAdjustmentModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_credit_adjustments_pending ON credit_adjustments (recipient_type, recipient_id, created_at) WHERE status = 'pending'`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CreditAdjustmentModel{})
		},
	}
}
