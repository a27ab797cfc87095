package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiter_Wait(t *testing.T) {
	limiter := NewSimpleRateLimiter(20*time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSimpleRateLimiter_WaitCancelled(t *testing.T) {
	limiter := NewSimpleRateLimiter(time.Second, time.Second)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveRateLimiter(t *testing.T) {
	tests := []struct {
		name    string
		record  func(a *AdaptiveRateLimiter)
		wantMin time.Duration
	}{
		{
			name: "backs off after three errors",
			record: func(a *AdaptiveRateLimiter) {
				a.RecordError()
				a.RecordError()
				a.RecordError()
			},
			wantMin: 150 * time.Millisecond,
		},
		{
			name: "two errors keep delay",
			record: func(a *AdaptiveRateLimiter) {
				a.RecordError()
				a.RecordError()
			},
			wantMin: 100 * time.Millisecond,
		},
		{
			name: "successes never go below floor",
			record: func(a *AdaptiveRateLimiter) {
				for i := 0; i < 12; i++ {
					a.RecordSuccess()
				}
			},
			wantMin: 100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdaptiveRateLimiter(100*time.Millisecond, 200*time.Millisecond)
			tt.record(a)

			minDelay, _ := a.Delays()
			assert.Equal(t, tt.wantMin, minDelay)
		})
	}
}

func TestAdaptiveRateLimiter_ImplementsPacer(t *testing.T) {
	var _ Pacer = NewAdaptiveRateLimiter(0, 0)
}
