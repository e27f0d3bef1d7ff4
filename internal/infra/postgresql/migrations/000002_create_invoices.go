package migrations

import (
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createInvoicesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_invoices",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.InvoiceModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Cancelled invoices do not block re-invoicing of the period.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_recipient_period ON invoices (recipient_type, recipient_id, billing_period_start) WHERE status <> 'cancelled'`,
				`CREATE INDEX IF NOT EXISTS idx_invoices_recipient ON invoices (recipient_type, recipient_id)`,
				`CREATE INDEX IF NOT EXISTS idx_invoices_status_due_date ON invoices (status, due_date)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InvoiceModel{})
		},
	}
}
