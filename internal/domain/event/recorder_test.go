package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/corekit/internal/domain/errs"
	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
)

func newTestEvent(eventType string) event.DomainEvent {
	base := event.NewBaseEvent(
		eventType,
		uuid.NewUUID(),
		"test",
		1,
		event.NewMetadata("user-1", "correlation-1", "causation-1"),
	)
	return &base
}

func TestRecorder_Record(t *testing.T) {
	t.Run("accumulates events in insertion order", func(t *testing.T) {
		var rec event.Recorder

		first := newTestEvent("test.first")
		second := newTestEvent("test.second")
		third := newTestEvent("test.third")

		require.NoError(t, rec.Record(first))
		require.NoError(t, rec.Record(second))
		require.NoError(t, rec.Record(third))

		pending := rec.UncommittedEvents()
		require.Len(t, pending, 3)
		assert.Equal(t, first.ID(), pending[0].ID())
		assert.Equal(t, second.ID(), pending[1].ID())
		assert.Equal(t, third.ID(), pending[2].ID())
	})

	t.Run("rejects nil event", func(t *testing.T) {
		var rec event.Recorder

		err := rec.Record(nil)

		require.ErrorIs(t, err, errs.ErrInvalidInput)
		assert.False(t, rec.HasUncommittedEvents())
	})
}

func TestRecorder_HasUncommittedEvents(t *testing.T) {
	var rec event.Recorder

	assert.False(t, rec.HasUncommittedEvents())

	require.NoError(t, rec.Record(newTestEvent("test.created")))
	assert.True(t, rec.HasUncommittedEvents())

	rec.ClearEvents()
	assert.False(t, rec.HasUncommittedEvents())
}

func TestRecorder_ClearEvents_Idempotent(t *testing.T) {
	var rec event.Recorder

	require.NoError(t, rec.Record(newTestEvent("test.created")))
	require.NoError(t, rec.Record(newTestEvent("test.updated")))

	rec.ClearEvents()
	assert.Empty(t, rec.UncommittedEvents())

	rec.ClearEvents()
	assert.Empty(t, rec.UncommittedEvents())
}

func TestRecorder_Remove(t *testing.T) {
	t.Run("removes matching event by identity", func(t *testing.T) {
		var rec event.Recorder

		first := newTestEvent("test.first")
		second := newTestEvent("test.second")
		require.NoError(t, rec.Record(first))
		require.NoError(t, rec.Record(second))

		rec.Remove(first)

		pending := rec.UncommittedEvents()
		require.Len(t, pending, 1)
		assert.Equal(t, second.ID(), pending[0].ID())
	})

	t.Run("no-op when event is absent", func(t *testing.T) {
		var rec event.Recorder

		require.NoError(t, rec.Record(newTestEvent("test.first")))
		rec.Remove(newTestEvent("test.other"))

		assert.Len(t, rec.UncommittedEvents(), 1)
	})

	t.Run("no-op for nil", func(t *testing.T) {
		var rec event.Recorder

		require.NoError(t, rec.Record(newTestEvent("test.first")))
		rec.Remove(nil)

		assert.Len(t, rec.UncommittedEvents(), 1)
	})
}

func TestRecorder_UncommittedEvents_Snapshot(t *testing.T) {
	var rec event.Recorder

	require.NoError(t, rec.Record(newTestEvent("test.first")))
	require.NoError(t, rec.Record(newTestEvent("test.second")))

	snapshot := rec.UncommittedEvents()
	snapshot[0] = nil

	pending := rec.UncommittedEvents()
	require.Len(t, pending, 2)
	assert.NotNil(t, pending[0])
}
