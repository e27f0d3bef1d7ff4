package migrations

import (
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createDirectoryTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000007_create_directory_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&repository.DivisionModel{},
				&repository.FinancerModel{},
				&repository.FinancerModuleModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.FinancerModuleModel{},
				&repository.FinancerModel{},
				&repository.DivisionModel{},
			)
		},
	}
}
