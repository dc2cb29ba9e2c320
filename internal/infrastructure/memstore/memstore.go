// Package memstore provides an in-memory appcore.Store. It stands in for a
// real change tracker in tests and small single-process deployments.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
)

// PersistFunc durably applies the state of one tracked carrier. A nil
// PersistFunc counts tracked carriers without writing anywhere.
type PersistFunc func(ctx context.Context, c event.Carrier) error

// Store tracks pending-event carriers explicitly and persists them through a
// caller-provided function. Writes are applied in tracking order; the first
// failure aborts the batch and is returned unchanged.
type Store struct {
	mu      sync.Mutex
	tracked []event.Carrier
	persist PersistFunc
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPersistFunc sets the function applied to each tracked carrier on
// Persist.
func WithPersistFunc(persist PersistFunc) Option {
	return func(s *Store) {
		s.persist = persist
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Track starts tracking a carrier. Tracking the same carrier twice is a
// no-op.
func (s *Store) Track(c event.Carrier) error {
	if c == nil {
		return errors.New("carrier cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tracked := range s.tracked {
		if tracked == c {
			return nil
		}
	}

	s.tracked = append(s.tracked, c)
	return nil
}

// Detach stops tracking a carrier. No-op if it is not tracked.
func (s *Store) Detach(c event.Carrier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tracked := range s.tracked {
		if tracked == c {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			return
		}
	}
}

// Tracked returns a snapshot of the tracked carriers in tracking order.
func (s *Store) Tracked() []event.Carrier {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.Carrier, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// Persist applies the persist function to every tracked carrier and returns
// the number of carriers written.
func (s *Store) Persist(ctx context.Context) (int, error) {
	s.mu.Lock()
	tracked := make([]event.Carrier, len(s.tracked))
	copy(tracked, s.tracked)
	s.mu.Unlock()

	for i, c := range tracked {
		if s.persist == nil {
			continue
		}
		if err := s.persist(ctx, c); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist tracked carrier",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			return 0, fmt.Errorf("failed to persist carrier %d: %w", i, err)
		}
	}

	return len(tracked), nil
}

// Begin opens a transaction over the tracking set: it snapshots the tracked
// carriers, and Rollback restores that snapshot, undoing Track and Detach
// calls made while the transaction was open. The tracking set is the store's
// only mutable state; carrier event sequences belong to the carriers.
func (s *Store) Begin(_ context.Context) (appcore.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]event.Carrier, len(s.tracked))
	copy(snapshot, s.tracked)

	return &memTx{store: s, snapshot: snapshot}, nil
}

type memTx struct {
	store    *Store
	snapshot []event.Carrier
	done     bool
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	tx.snapshot = nil
	return nil
}

// Rollback restores the tracking set captured at Begin. It is idempotent and
// a no-op after Commit.
func (tx *memTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true

	tx.store.mu.Lock()
	tx.store.tracked = tx.snapshot
	tx.store.mu.Unlock()

	tx.snapshot = nil
	return nil
}

var _ appcore.Store = (*Store)(nil)
