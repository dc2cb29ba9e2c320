// Package session implements the unit of work: one transactional scope that
// persists tracked mutations atomically and dispatches the domain events
// drained from the touched aggregates, strictly after the write succeeds.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
)

// Session is a unit of work over a Store. A Session owns at most one active
// transaction at a time and is meant to be scoped: one logical unit of work
// per instance. The internal mutex is defensive; concurrent callers sharing
// one Session still interleave logically and should coordinate externally.
type Session struct {
	store      appcore.Store
	dispatcher appcore.Dispatcher
	logger     *slog.Logger

	mu sync.Mutex
	tx appcore.Transaction
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session over the given store and dispatcher.
func New(store appcore.Store, dispatcher appcore.Dispatcher, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}

	s := &Session{
		store:      store,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// BeginTransaction opens a transaction on the underlying store. If one is
// already active the call is logged and ignored.
func (s *Session) BeginTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		s.logger.WarnContext(ctx, "transaction already active, begin ignored")
		return nil
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to begin transaction",
			slog.String("error", err.Error()),
		)
		return err
	}

	s.tx = tx
	return nil
}

// CommitTransaction commits the active transaction. Without one the call is
// logged and ignored. The transaction handle is released whether the commit
// succeeds or not; a failed commit is rolled back and the original commit
// error is returned.
func (s *Session) CommitTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		s.logger.WarnContext(ctx, "no active transaction, commit ignored")
		return nil
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Commit(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to commit transaction",
			slog.String("error", err.Error()),
		)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back after commit failure",
				slog.String("error", rbErr.Error()),
			)
		}
		return err
	}

	return nil
}

// RollbackTransaction discards the active transaction. Without one the call
// is logged and ignored.
func (s *Session) RollbackTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rollbackLocked(ctx)
}

func (s *Session) rollbackLocked(ctx context.Context) error {
	if s.tx == nil {
		s.logger.WarnContext(ctx, "no active transaction, rollback ignored")
		return nil
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Rollback(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back transaction",
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// SaveChanges persists all tracked mutations and dispatches the pending
// events of the touched aggregates. The sequence is:
//
//  1. snapshot tracked carriers that have pending events and collect their
//     events, preserving per-carrier insertion order;
//  2. persist; on failure roll back any active transaction and return the
//     persistence error unchanged — no handler runs, no event is cleared;
//  3. clear the pending events on every snapshotted carrier;
//  4. dispatch the collected events and wait for all handlers.
//
// Events are cleared only after the write is confirmed, so a failed write
// leaves them attached for the next attempt.
//
// A dispatch failure is returned to the caller even though the state write
// has already committed: the data change succeeded but side effects may have
// partially failed. Callers needing delivery guarantees should dispatch
// through a transactional outbox instead (see infrastructure/outbox).
func (s *Session) SaveChanges(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	carriers, events := s.collectPending()

	count, err := s.store.Persist(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "persistence write failed",
			slog.Int("pending_events", len(events)),
			slog.String("error", err.Error()),
		)
		if s.tx != nil {
			if rbErr := s.rollbackLocked(ctx); rbErr != nil {
				s.logger.ErrorContext(ctx, "rollback after failed write failed",
					slog.String("error", rbErr.Error()),
				)
			}
		}
		return 0, err
	}

	for _, c := range carriers {
		c.ClearEvents()
	}

	if len(events) > 0 {
		if dispatchErr := s.dispatcher.Dispatch(ctx, events); dispatchErr != nil {
			s.logger.ErrorContext(ctx, "event dispatch failed after commit",
				slog.Int("event_count", len(events)),
				slog.String("error", dispatchErr.Error()),
			)
			return count, dispatchErr
		}
	}

	return count, nil
}

// collectPending snapshots the tracked carriers that currently have pending
// events, together with those events. Per-carrier insertion order is
// preserved; ordering across carriers follows the store's iteration order.
func (s *Session) collectPending() ([]event.Carrier, []event.DomainEvent) {
	var (
		carriers []event.Carrier
		events   []event.DomainEvent
	)

	for _, c := range s.store.Tracked() {
		if c == nil || !c.HasUncommittedEvents() {
			continue
		}
		carriers = append(carriers, c)
		events = append(events, c.UncommittedEvents()...)
	}

	return carriers, events
}

var _ appcore.UnitOfWork = (*Session)(nil)
