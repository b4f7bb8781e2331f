package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket without a polling loop: Acquire computes the
// exact wait for the next token and sleeps once on a timer, waking early on
// context cancellation.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
}

// NewRateLimiter creates a bucket refilled at rate tokens per second holding
// at most burst tokens. A rate of 0 disables limiting.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{rate: rate, capacity: float64(burst), tokens: float64(burst), last: time.Now()}
}

// Acquire blocks until one token is available or the context is done.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil || l.rate <= 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.tokens = min(l.capacity, l.tokens+now.Sub(l.last).Seconds()*l.rate)
		l.last = now
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
