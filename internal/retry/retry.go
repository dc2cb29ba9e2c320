// Package retry executes operations with bounded exponential backoff and
// jitter, retrying only failures classified as transient.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default policy configuration.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultMultiplier = 2.0

	maxJitter = 1 * time.Second
)

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(err error) bool

// Policy retries an operation with exponential backoff plus jitter. A Policy
// is stateless apart from its configuration and safe for concurrent use.
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	classify   Classifier
	clock      clockwork.Clock
	jitter     func() time.Duration
	logger     *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxRetries sets the maximum number of retries (not counting the first
// attempt). Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		p.maxRetries = max(n, 0)
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.baseDelay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.maxDelay = d
	}
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		p.multiplier = m
	}
}

// WithClassifier replaces the transient-error classifier.
func WithClassifier(c Classifier) Option {
	return func(p *Policy) {
		p.classify = c
	}
}

// WithClock sets the clock used for inter-attempt sleeps.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Policy) {
		p.clock = clock
	}
}

// WithJitter replaces the jitter source. The function is called once per
// sleep and must return a non-negative duration.
func WithJitter(jitter func() time.Duration) Option {
	return func(p *Policy) {
		p.jitter = jitter
	}
}

// WithLogger sets the logger for the policy.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New creates a Policy with the default configuration, adjusted by opts.
func New(opts ...Option) *Policy {
	p := &Policy{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		multiplier: DefaultMultiplier,
		classify:   IsTransient,
		clock:      clockwork.NewRealClock(),
		jitter: func() time.Duration {
			return time.Duration(rand.Int64N(int64(maxJitter)))
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Execute runs op up to maxRetries+1 times, sleeping Delay(n) before retry n.
// It stops on the first success, on the first non-transient error, and on
// context cancellation; the sleep itself is interruptible. After exhausting
// the budget the last observed error is returned unchanged.
func (p *Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			p.logger.DebugContext(ctx, "retrying operation",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(delay):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		// Cancellation is not a transient failure: retrying a cancelled
		// operation only burns the budget against a dead context.
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}

		if !p.classify(err) {
			p.logger.DebugContext(ctx, "non-retryable error, giving up",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}

		p.logger.WarnContext(ctx, "transient failure",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", p.maxRetries),
			slog.String("error", err.Error()),
		)
	}

	return lastErr
}

// Do runs op through the policy and returns its typed result.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := p.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})

	return result, err
}

// Delay returns the sleep before retry attempt n (1-indexed):
// min(maxDelay, baseDelay × multiplier^(n-1) + jitter).
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt-1))
	if backoff > float64(p.maxDelay) {
		backoff = float64(p.maxDelay)
	}

	delay := time.Duration(backoff) + p.jitter()
	if delay > p.maxDelay {
		delay = p.maxDelay
	}

	return delay
}
