package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(maxFailures, probes int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(&Config{
		Name:             "test",
		MaxFailures:      maxFailures,
		Cooldown:         time.Minute,
		HalfOpenMaxCalls: probes,
	})
	cb.now = clock.now
	return cb, clock
}

func fail(ctx context.Context) error    { return errBackend }
func succeed(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(3, 1)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	}
	require.NoError(t, cb.Execute(ctx, succeed), "success resets the streak")
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	}
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, 1, cb.Stats().Rejected)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	ctx := context.Background()
	cb, clock := newTestBreaker(1, 2)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	require.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	ctx := context.Background()
	cb, clock := newTestBreaker(1, 1)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	clock.t = clock.t.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, clock.t, cb.Stats().OpenedAt)

	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(1, 1)

	err := cb.Execute(ctx, func(ctx context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(1, 1)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
}
