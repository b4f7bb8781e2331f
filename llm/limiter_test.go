package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_PacesAcquisitions(t *testing.T) {
	limiter := NewRateLimiter(50, 1)

	require.NoError(t, limiter.Acquire(context.Background()))
	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background()))
	require.NoError(t, limiter.Acquire(context.Background()))

	// Two more tokens at 50/s need roughly 40ms of refill.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRateLimiter_ContextCancel(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
