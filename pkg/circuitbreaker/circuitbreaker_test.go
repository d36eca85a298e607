package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	var transitions []string

	cb := New("test",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithTimeout(time.Minute),
		WithClock(clock.Now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.True(t, cb.IsOpen())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open circuit does not call upstream")

	clock.Advance(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
	assert.Equal(t, 4, cb.Counts().Requests, "rejected calls are not counted")
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen, "timeout restarts on reopen")
}

func TestCircuitBreaker_HalfOpenTrialLimit(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// Second caller while the trial call is in flight.
		assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := DirectoryBreaker(1, time.Minute, nil, WithIsFailure(func(err error) bool {
		return !errors.Is(err, errNotFound)
	}))

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errNotFound }), errNotFound)
	}
	assert.False(t, cb.IsOpen())
	assert.Equal(t, "event-directory", cb.Name())
}
