package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const appendRetries = 3

// StoredEvent is one immutable entry of an aggregate's audit trail.
// Version is 1-based and dense per aggregate.
type StoredEvent struct {
	ID          string
	AggregateID string
	Version     int
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Store is an append-only event log keyed by aggregate id. Events are never
// updated or deleted; Stream returns them in version order.
type Store interface {
	Append(ctx context.Context, aggregateID, eventType string, payload any) (*StoredEvent, error)
	Stream(ctx context.Context, aggregateID string) ([]StoredEvent, error)
}

// StoredEventModel is the persistence model for the stored_events table.
type StoredEventModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	AggregateID string `gorm:"type:varchar(255);not null;uniqueIndex:idx_stored_events_aggregate_version,priority:1"`
	Version     int    `gorm:"not null;uniqueIndex:idx_stored_events_aggregate_version,priority:2"`
	EventType   string `gorm:"type:varchar(64);not null"`
	Payload     []byte `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time
}

func (StoredEventModel) TableName() string {
	return "stored_events"
}

// GormStore persists events in Postgres. Version allocation and insert run in
// one transaction; a concurrent appender losing the race on the
// (aggregate_id, version) unique index triggers a bounded retry.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Append(ctx context.Context, aggregateID, eventType string, payload any) (*StoredEvent, error) {
	if strings.TrimSpace(aggregateID) == "" {
		return nil, fmt.Errorf("aggregate id is required")
	}
	if strings.TrimSpace(eventType) == "" {
		return nil, fmt.Errorf("event type is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		model := &StoredEventModel{
			ID:          uuid.NewString(),
			AggregateID: aggregateID,
			EventType:   eventType,
			Payload:     raw,
			CreatedAt:   s.now().UTC(),
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxVersion int
			err := tx.Model(&StoredEventModel{}).
				Where("aggregate_id = ?", aggregateID).
				Select("COALESCE(MAX(version), 0)").
				Scan(&maxVersion).Error
			if err != nil {
				return err
			}
			model.Version = maxVersion + 1
			return tx.Create(model).Error
		})
		if err == nil {
			return modelToStoredEvent(model), nil
		}

		lastErr = err
		if !isUniqueViolationError(err) {
			return nil, fmt.Errorf("failed to append event: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to append event after version conflicts: %w", lastErr)
}

func (s *GormStore) Stream(ctx context.Context, aggregateID string) ([]StoredEvent, error) {
	var models []StoredEventModel
	err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]StoredEvent, 0, len(models))
	for i := range models {
		events = append(events, *modelToStoredEvent(&models[i]))
	}
	return events, nil
}

func modelToStoredEvent(m *StoredEventModel) *StoredEvent {
	return &StoredEvent{
		ID:          m.ID,
		AggregateID: m.AggregateID,
		Version:     m.Version,
		EventType:   m.EventType,
		Payload:     json.RawMessage(m.Payload),
		CreatedAt:   m.CreatedAt,
	}
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
