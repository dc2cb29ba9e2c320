package event

import (
	"github.com/lllypuk/corekit/internal/domain/errs"
)

// Recorder accumulates the pending events of a single aggregate. Embed it to
// satisfy Carrier. The recorder never dispatches its own events; only a unit
// of work drains them, and only after the owning state change is persisted.
//
// Recorder is not synchronized: an aggregate is written by one in-flight
// operation at a time.
type Recorder struct {
	events []DomainEvent
}

// Record appends an event to the pending sequence.
func (r *Recorder) Record(evt DomainEvent) error {
	if evt == nil {
		return errs.ErrInvalidInput
	}

	r.events = append(r.events, evt)
	return nil
}

// Remove drops the first pending event with the same ID. No-op if absent.
func (r *Recorder) Remove(evt DomainEvent) {
	if evt == nil {
		return
	}

	for i, e := range r.events {
		if e.ID() == evt.ID() {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return
		}
	}
}

// UncommittedEvents returns a snapshot of pending events in insertion order.
// Mutating the returned slice does not affect the recorder.
func (r *Recorder) UncommittedEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

// ClearEvents drops all pending events. Idempotent.
func (r *Recorder) ClearEvents() {
	r.events = nil
}

// HasUncommittedEvents reports whether any events are pending.
func (r *Recorder) HasUncommittedEvents() bool {
	return len(r.events) > 0
}

var _ Carrier = (*Recorder)(nil)
