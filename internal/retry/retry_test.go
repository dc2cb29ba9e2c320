package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/corekit/internal/domain/errs"
	"github.com/lllypuk/corekit/internal/retry"
)

func noJitter() time.Duration { return 0 }

func transientErr(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrTransient)
}

func TestPolicy_Execute_SucceedsFirstAttempt(t *testing.T) {
	p := retry.New()

	attempts := 0
	err := p.Execute(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Execute_RetriesTransientThenSucceeds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.New(
		retry.WithMaxRetries(2),
		retry.WithBaseDelay(100*time.Millisecond),
		retry.WithClock(clock),
		retry.WithJitter(noJitter),
	)

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(context.Background(), func(context.Context) error {
			attempts++
			if attempts <= 2 {
				return transientErr("connection dropped")
			}
			return nil
		})
	}()

	// First retry sleeps 100ms, second 200ms.
	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)
	clock.BlockUntil(1)
	clock.Advance(200 * time.Millisecond)

	require.NoError(t, <-done)
	assert.Equal(t, 3, attempts)
}

func TestDo_ReturnsResultAfterRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.New(
		retry.WithMaxRetries(2),
		retry.WithBaseDelay(100*time.Millisecond),
		retry.WithClock(clock),
		retry.WithJitter(noJitter),
	)

	attempts := 0
	type answer struct {
		value int
		err   error
	}
	done := make(chan answer, 1)
	go func() {
		value, err := retry.Do(context.Background(), p, func(context.Context) (int, error) {
			attempts++
			if attempts <= 2 {
				return 0, context.DeadlineExceeded
			}
			return 42, nil
		})
		done <- answer{value: value, err: err}
	}()

	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)
	clock.BlockUntil(1)
	clock.Advance(200 * time.Millisecond)

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, 42, result.value)
	assert.Equal(t, 3, attempts)
}

func TestDo_ElapsedCoversBackoff(t *testing.T) {
	p := retry.New(
		retry.WithMaxRetries(2),
		retry.WithBaseDelay(10*time.Millisecond),
		retry.WithJitter(noJitter),
	)

	attempts := 0
	start := time.Now()
	value, err := retry.Do(context.Background(), p, func(context.Context) (int, error) {
		attempts++
		if attempts <= 2 {
			return 0, transientErr("timeout")
		}
		return 42, nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestPolicy_Execute_ExhaustsRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.New(
		retry.WithMaxRetries(3),
		retry.WithBaseDelay(time.Second),
		retry.WithClock(clock),
		retry.WithJitter(noJitter),
	)

	opErr := transientErr("still down")
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(context.Background(), func(context.Context) error {
			attempts++
			return opErr
		})
	}()

	for _, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		clock.BlockUntil(1)
		clock.Advance(delay)
	}

	err := <-done

	// The last observed error comes back unchanged.
	require.Equal(t, opErr, err)
	assert.Equal(t, 4, attempts)
}

func TestPolicy_Execute_FatalShortCircuits(t *testing.T) {
	p := retry.New()

	opErr := errors.New("constraint violation")
	attempts := 0
	err := p.Execute(context.Background(), func(context.Context) error {
		attempts++
		return opErr
	})

	require.Equal(t, opErr, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Execute_CancelledOperationNotRetried(t *testing.T) {
	p := retry.New()

	attempts := 0
	err := p.Execute(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("aborted: %w", context.Canceled)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Execute_CancellationInterruptsSleep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.New(
		retry.WithMaxRetries(3),
		retry.WithBaseDelay(time.Minute),
		retry.WithClock(clock),
		retry.WithJitter(noJitter),
	)

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(ctx, func(context.Context) error {
			attempts++
			return transientErr("timeout")
		})
	}()

	// Cancel while the policy sleeps before the first retry.
	clock.BlockUntil(1)
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Execute_CustomClassifier(t *testing.T) {
	retryable := errors.New("deadlock victim")
	p := retry.New(
		retry.WithMaxRetries(1),
		retry.WithBaseDelay(time.Millisecond),
		retry.WithJitter(noJitter),
		retry.WithClassifier(func(err error) bool {
			return errors.Is(err, retryable)
		}),
	)

	attempts := 0
	err := p.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return retryable
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPolicy_Delay_ExponentialGrowth(t *testing.T) {
	p := retry.New(
		retry.WithBaseDelay(time.Second),
		retry.WithMultiplier(2.0),
		retry.WithMaxDelay(60*time.Second),
		retry.WithJitter(noJitter),
	)

	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestPolicy_Delay_JitterBounds(t *testing.T) {
	p := retry.New(
		retry.WithBaseDelay(time.Second),
		retry.WithMultiplier(2.0),
		retry.WithMaxDelay(60*time.Second),
	)

	for attempt := 1; attempt <= 3; attempt++ {
		backoff := time.Second << (attempt - 1)
		for range 100 {
			delay := p.Delay(attempt)
			assert.GreaterOrEqual(t, delay, backoff)
			assert.Less(t, delay, backoff+time.Second)
		}
	}
}

func TestPolicy_Delay_CappedAtMaxDelay(t *testing.T) {
	p := retry.New(
		retry.WithBaseDelay(time.Second),
		retry.WithMultiplier(2.0),
		retry.WithMaxDelay(60*time.Second),
	)

	// 2^9 = 512s of raw backoff, jitter included the cap holds.
	assert.Equal(t, 60*time.Second, p.Delay(10))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "marked transient", err: transientErr("socket closed"), want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "wrapped deadline", err: fmt.Errorf("op: %w", context.DeadlineExceeded), want: true},
		{name: "cancellation", err: context.Canceled, want: false},
		{name: "plain error", err: errors.New("bad request"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.IsTransient(tt.err))
		})
	}
}
