package migrations

import (
	"github.com/gdeblander/billing-engine/internal/eventstore"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createStoredEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_create_stored_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&eventstore.StoredEventModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_stored_events_event_type ON stored_events (event_type, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&eventstore.StoredEventModel{})
		},
	}
}
