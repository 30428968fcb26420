package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"
)

// Defaults for optimistic-concurrency retries.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
)

// ErrExhausted is returned when every attempt failed with a retryable error,
// or the wall-clock ceiling expired between attempts.
var ErrExhausted = errors.New("retry attempts exhausted")

// BackoffFunc returns the delay to wait after the given failed attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Linear waits base × attempt.
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ClockSleeper sleeps on the given clock so tests can drive it with a fake clock.
func ClockSleeper(clk clock.Clock) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		timer := clk.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Policy is an injectable retry policy.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       Sleeper
	// MaxWallTime bounds the whole loop; zero means no ceiling.
	MaxWallTime time.Duration
}

// DefaultPolicy is 3 attempts with 200ms × attempt between them.
func DefaultPolicy(clk clock.Clock) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     Linear(DefaultBaseDelay),
		Sleep:       ClockSleeper(clk),
	}
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as a conflict worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// Controller runs an operation under a Policy.
type Controller struct {
	policy Policy
	logger *zap.Logger
}

// NewController creates a controller, filling unset policy fields with defaults.
func NewController(policy Policy, logger *zap.Logger) *Controller {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Backoff == nil {
		policy.Backoff = Linear(DefaultBaseDelay)
	}
	if policy.Sleep == nil {
		policy.Sleep = ClockSleeper(clock.NewClock())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{policy: policy, logger: logger}
}

// Policy returns the effective policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Do calls op until it succeeds, returns a non-retryable error, or attempts run out.
// Non-retryable errors are returned unchanged.
func (c *Controller) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	parent := ctx
	if c.policy.MaxWallTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.MaxWallTime)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				RecoveredTotal.Inc()
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		ConflictsTotal.Inc()

		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Backoff(attempt)
		c.logger.Info("retrying-after-conflict",
			zap.Int("attempt", attempt),
			zap.Int("max-attempts", c.policy.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err))

		err = c.policy.Sleep(ctx, delay)
		if err != nil {
			if parent.Err() != nil {
				return parent.Err()
			}
			// Wall-clock ceiling reached.
			break
		}
	}

	ExhaustedTotal.Inc()
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, c.policy.MaxAttempts, lastErr)
}
