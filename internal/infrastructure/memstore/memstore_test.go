package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/infrastructure/memstore"
)

func TestStore_Track(t *testing.T) {
	store := memstore.New()
	carrier := &event.Recorder{}

	require.NoError(t, store.Track(carrier))
	assert.Len(t, store.Tracked(), 1)

	// Tracking the same carrier again is a no-op.
	require.NoError(t, store.Track(carrier))
	assert.Len(t, store.Tracked(), 1)
}

func TestStore_Track_NilCarrier(t *testing.T) {
	store := memstore.New()

	err := store.Track(nil)
	require.Error(t, err)
}

func TestStore_Detach(t *testing.T) {
	store := memstore.New()
	a := &event.Recorder{}
	b := &event.Recorder{}

	require.NoError(t, store.Track(a))
	require.NoError(t, store.Track(b))

	store.Detach(a)

	tracked := store.Tracked()
	require.Len(t, tracked, 1)
	assert.Same(t, b, tracked[0])

	// Detaching an unknown carrier is a no-op.
	store.Detach(&event.Recorder{})
	assert.Len(t, store.Tracked(), 1)
}

func TestStore_Tracked_ReturnsSnapshot(t *testing.T) {
	store := memstore.New()
	a := &event.Recorder{}
	require.NoError(t, store.Track(a))

	snapshot := store.Tracked()
	snapshot[0] = nil

	tracked := store.Tracked()
	require.Len(t, tracked, 1)
	assert.Same(t, a, tracked[0])
}

func TestStore_Persist_AppliesInTrackingOrder(t *testing.T) {
	var order []event.Carrier
	store := memstore.New(memstore.WithPersistFunc(func(_ context.Context, c event.Carrier) error {
		order = append(order, c)
		return nil
	}))

	a := &event.Recorder{}
	b := &event.Recorder{}
	require.NoError(t, store.Track(a))
	require.NoError(t, store.Track(b))

	count, err := store.Persist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, order, 2)
	assert.Same(t, a, order[0])
	assert.Same(t, b, order[1])
}

func TestStore_Persist_FirstFailureAborts(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	store := memstore.New(memstore.WithPersistFunc(func(_ context.Context, _ event.Carrier) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	}))

	require.NoError(t, store.Track(&event.Recorder{}))
	require.NoError(t, store.Track(&event.Recorder{}))

	count, err := store.Persist(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, count)
	assert.Equal(t, 1, calls, "second carrier should not be persisted after a failure")
}

func TestStore_Persist_NilPersistFuncCountsOnly(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Track(&event.Recorder{}))

	count, err := store.Persist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_Begin_Transaction(t *testing.T) {
	store := memstore.New()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx.Commit(context.Background()))
	require.Error(t, tx.Commit(context.Background()), "double commit should fail")

	tx2, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(context.Background()))
	require.NoError(t, tx2.Rollback(context.Background()), "rollback is idempotent")
}

func TestStore_Rollback_RestoresTrackingSet(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	a := &event.Recorder{}
	require.NoError(t, store.Track(a))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	// Mutate the tracking set inside the transaction.
	b := &event.Recorder{}
	require.NoError(t, store.Track(b))
	store.Detach(a)
	require.Len(t, store.Tracked(), 1)

	require.NoError(t, tx.Rollback(ctx))

	tracked := store.Tracked()
	require.Len(t, tracked, 1)
	assert.Same(t, a, tracked[0], "rollback should restore the snapshot taken at Begin")
}

func TestStore_Commit_KeepsTrackingChanges(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	a := &event.Recorder{}
	require.NoError(t, store.Track(a))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	b := &event.Recorder{}
	require.NoError(t, store.Track(b))

	require.NoError(t, tx.Commit(ctx))

	// Rollback after commit must not undo anything.
	require.NoError(t, tx.Rollback(ctx))
	assert.Len(t, store.Tracked(), 2)
}
