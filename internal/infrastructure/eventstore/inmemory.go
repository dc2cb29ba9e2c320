package eventstore

import (
	"context"
	"sync"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
)

// InMemoryEventStore implements appcore.EventStore in memory, for tests.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]event.DomainEvent
}

// NewInMemoryEventStore creates an empty in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[uuid.UUID][]event.DomainEvent),
	}
}

// SaveEvents appends events for an aggregate with optimistic locking.
func (s *InMemoryEventStore) SaveEvents(
	_ context.Context,
	aggregateID uuid.UUID,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	currentVersion := len(s.events[aggregateID])
	if currentVersion != expectedVersion {
		return appcore.ErrConcurrencyConflict
	}

	s.events[aggregateID] = append(s.events[aggregateID], events...)

	return nil
}

// LoadEvents loads all events for an aggregate in append order.
func (s *InMemoryEventStore) LoadEvents(
	_ context.Context,
	aggregateID uuid.UUID,
) ([]event.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.events[aggregateID]
	if !exists {
		return nil, appcore.ErrAggregateNotFound
	}

	result := make([]event.DomainEvent, len(events))
	copy(result, events)

	return result, nil
}

// Version returns the current version of an aggregate, 0 if not found.
func (s *InMemoryEventStore) Version(_ context.Context, aggregateID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.events[aggregateID]), nil
}

// Clear drops all stored events.
func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[uuid.UUID][]event.DomainEvent)
}

var _ appcore.EventStore = (*InMemoryEventStore)(nil)
