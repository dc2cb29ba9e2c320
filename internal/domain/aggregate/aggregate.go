// Package aggregate provides a composition-based aggregate root helper.
//
// Instead of a base-class hierarchy, an aggregate is a plain struct that
// embeds Root for identity, versioning and pending-event recording:
//
//	type Order struct {
//		aggregate.Root
//		status Status
//	}
package aggregate

import (
	"github.com/lllypuk/corekit/internal/domain/errs"
	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
)

// Root holds the identity, version and pending events of an aggregate.
type Root struct {
	event.Recorder

	id      uuid.UUID
	version int
}

// NewRoot creates a root for a new aggregate at version zero.
func NewRoot(id uuid.UUID) (Root, error) {
	if id.IsZero() {
		return Root{}, errs.ErrInvalidInput
	}
	return Root{id: id}, nil
}

// Rehydrate creates a root for an aggregate loaded from storage.
func Rehydrate(id uuid.UUID, version int) (Root, error) {
	if id.IsZero() || version < 0 {
		return Root{}, errs.ErrInvalidInput
	}
	return Root{id: id, version: version}, nil
}

// ID returns the aggregate identity.
func (r *Root) ID() uuid.UUID {
	return r.id
}

// Version returns the current aggregate version. It increments once per
// raised event and serves as the optimistic concurrency marker.
func (r *Root) Version() int {
	return r.version
}

// Raise records a domain event and bumps the aggregate version.
func (r *Root) Raise(evt event.DomainEvent) error {
	if err := r.Record(evt); err != nil {
		return err
	}

	r.version++
	return nil
}
