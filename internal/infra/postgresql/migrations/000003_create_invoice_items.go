package migrations

import (
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createInvoiceItemsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_invoice_items",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.InvoiceItemModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InvoiceItemModel{})
		},
	}
}
