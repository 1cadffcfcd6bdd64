package event

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
)

// MemoryStore is a process-local Store. Events live as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	clock  clock.Clock
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clock: clk}
}

// Append assigns missing IDs and timestamps and stores the events.
func (s *MemoryStore) Append(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, aggregateID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (s *MemoryStore) LoadByType(_ context.Context, eventType Type) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for _, e := range s.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}
