package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errConflict = errors.New("conflict")

type recordingSleeper struct {
	delays []time.Duration
	err    error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func newTestController(sleeper *recordingSleeper) *Controller {
	return NewController(Policy{
		MaxAttempts: 3,
		Backoff:     Linear(200 * time.Millisecond),
		Sleep:       sleeper.Sleep,
	}, zap.NewNop())
}

func TestLinear(t *testing.T) {
	backoff := Linear(200 * time.Millisecond)

	assert.Equal(t, 200*time.Millisecond, backoff(1))
	assert.Equal(t, 400*time.Millisecond, backoff(2))
	assert.Equal(t, 600*time.Millisecond, backoff(3))
}

func TestRetryable(t *testing.T) {
	assert.Nil(t, Retryable(nil))

	err := Retryable(errConflict)
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, errConflict))
	assert.Equal(t, "conflict", err.Error())

	assert.False(t, IsRetryable(errConflict))
	assert.False(t, IsRetryable(nil))
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	c := newTestController(sleeper)

	calls := 0
	err := c.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, 1, attempt)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestDo_RecoversAfterConflict(t *testing.T) {
	sleeper := &recordingSleeper{}
	c := newTestController(sleeper)

	var attempts []int
	err := c.Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return Retryable(errConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, sleeper.delays)
}

func TestDo_Exhausted(t *testing.T) {
	sleeper := &recordingSleeper{}
	c := newTestController(sleeper)

	calls := 0
	err := c.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Retryable(errConflict)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.True(t, errors.Is(err, errConflict))
	assert.Equal(t, 3, calls)
	// No sleep after the final attempt.
	assert.Len(t, sleeper.delays, 2)
}

func TestDo_NonRetryableReturnedUnchanged(t *testing.T) {
	sleeper := &recordingSleeper{}
	c := newTestController(sleeper)
	terminal := errors.New("lot not found")

	calls := 0
	err := c.Do(context.Background(), func(context.Context, int) error {
		calls++
		return terminal
	})

	assert.Same(t, terminal, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestDo_ParentCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(Policy{
		MaxAttempts: 3,
		Backoff:     Linear(time.Millisecond),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}, zap.NewNop())

	err := c.Do(ctx, func(context.Context, int) error {
		return Retryable(errConflict)
	})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrExhausted))
}

func TestDo_WallTimeCeiling(t *testing.T) {
	c := NewController(Policy{
		MaxAttempts: 5,
		Backoff:     Linear(time.Second),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		},
		MaxWallTime: 10 * time.Millisecond,
	}, zap.NewNop())

	calls := 0
	err := c.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Retryable(errConflict)
	})

	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 1, calls)
}

func TestNewController_Defaults(t *testing.T) {
	c := NewController(Policy{}, nil)

	p := c.Policy()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, p.Backoff(1))
	assert.NotNil(t, p.Sleep)
}

func TestClockSleeper(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	sleep := ClockSleeper(clk)

	done := make(chan error, 1)
	go func() {
		done <- sleep(context.Background(), 200*time.Millisecond)
	}()

	clk.WaitForWatcherAndIncrement(200 * time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper did not wake after clock advanced")
	}
}

func TestClockSleeper_ContextCancelled(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	sleep := ClockSleeper(clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
