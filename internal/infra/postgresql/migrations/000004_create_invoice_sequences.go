package migrations

import (
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createInvoiceSequencesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_invoice_sequences",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.InvoiceSequenceModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InvoiceSequenceModel{})
		},
	}
}
