package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)...)
}

func TestDo_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		opts      []Option
		wantCalls int
	}{
		{name: "retryable until attempts run out", err: Retryable(errBoom), wantCalls: 3},
		{name: "permanent stops at once", err: Permanent(errBoom), wantCalls: 1},
		{name: "unclassified stops at once", err: errBoom, wantCalls: 1},
		{name: "RetryIf opts plain errors in", err: errBoom, opts: []Option{WithRetryIf(func(error) bool { return true })}, wantCalls: 3},
		{name: "RetryIf cannot override permanent", err: Permanent(errBoom), opts: []Option{WithRetryIf(func(error) bool { return true })}, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fast(tt.opts...).Do(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, errBoom, err, "markers are stripped")
		})
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	var retried []int
	calls := 0
	err := fast(WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBoom)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)

	// Cancelled during backoff: the last operation error wins.
	ctx, cancel = context.WithCancel(context.Background())
	err = New(WithInitialDelay(time.Hour)).Do(ctx, func(context.Context) error {
		cancel()
		return Retryable(errBoom)
	})
	assert.Equal(t, errBoom, err)
}

func TestDelay_ExponentialAndCapped(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(time.Second), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.delay(1))
	assert.Equal(t, 200*time.Millisecond, r.delay(2))
	assert.Equal(t, 400*time.Millisecond, r.delay(3))
	assert.Equal(t, time.Second, r.delay(10))
}

func TestMarkers(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	wrapped := Retryable(errBoom)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, errBoom)
}
