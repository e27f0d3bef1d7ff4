package migrations

import (
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createInvoiceBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_invoice_batches",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.InvoiceBatchModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InvoiceBatchModel{})
		},
	}
}
