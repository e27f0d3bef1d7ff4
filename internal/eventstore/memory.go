package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and as the discard sink for
// dry runs that do not persist events.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string][]StoredEvent
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]StoredEvent),
		now:     time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, aggregateID, eventType string, payload any) (*StoredEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event := StoredEvent{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Version:     len(s.streams[aggregateID]) + 1,
		EventType:   eventType,
		Payload:     raw,
		CreatedAt:   s.now().UTC(),
	}
	s.streams[aggregateID] = append(s.streams[aggregateID], event)

	copied := event
	return &copied, nil
}

func (s *MemoryStore) Stream(_ context.Context, aggregateID string) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	events := make([]StoredEvent, len(stream))
	copy(events, stream)
	return events, nil
}
