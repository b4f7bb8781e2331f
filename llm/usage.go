package llm

import (
	"sync"
	"time"
)

// ProviderUsage accumulates per provider:model accounting. AvgLatency is an
// incremental mean over successful requests.
type ProviderUsage struct {
	Requests   int           `json:"requests"`
	Tokens     int           `json:"tokens"`
	Cost       float64       `json:"cost"`
	AvgLatency time.Duration `json:"avg_latency"`
	Errors     int           `json:"errors"`
}

// usageTracker guards the global per-provider counters. The counters are
// shared mutable state touched from every concurrent completion, so all
// access goes through the mutex.
type usageTracker struct {
	mu    sync.Mutex
	usage map[string]*ProviderUsage
}

func newUsageTracker() *usageTracker {
	return &usageTracker{usage: make(map[string]*ProviderUsage)}
}

func (t *usageTracker) record(key string, tokens int, cost float64, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.get(key)
	u.Requests++
	u.Tokens += tokens
	u.Cost += cost
	u.AvgLatency += (latency - u.AvgLatency) / time.Duration(u.Requests)
}

func (t *usageTracker) recordError(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(key).Errors++
}

// get must be called with the lock held.
func (t *usageTracker) get(key string) *ProviderUsage {
	u, ok := t.usage[key]
	if !ok {
		u = &ProviderUsage{}
		t.usage[key] = u
	}
	return u
}

// snapshot returns a copy of the counters safe for callers to hold.
func (t *usageTracker) snapshot() map[string]ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ProviderUsage, len(t.usage))
	for k, u := range t.usage {
		out[k] = *u
	}
	return out
}
