package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"carrieralpha/pkg/platform/outbox"
)

// InMemoryStore keeps outbox events in insertion order for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []outbox.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]outbox.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outbox.Event
	for _, e := range s.events {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	for i := range s.events {
		if _, ok := pending[s.events[i].ID]; ok && s.events[i].PublishedAt == nil {
			t := at
			s.events[i].PublishedAt = &t
		}
	}
	return nil
}

// All returns every event, published or not.
func (s *InMemoryStore) All() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event{}, s.events...)
}
