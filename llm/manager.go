package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/logging"
)

// Manager secures completions behind an ordered multi-provider fallback
// chain with caching, rate limiting and per-provider usage accounting.
//
// Providers are registered by vendor name; Configs bind a vendor to a
// concrete model with priority, cost and streaming knobs. A request walks
// the filtered chain sequentially (never racing: racing would violate the
// declared priority and cost ordering) and returns the first success.
type Manager struct {
	mu        sync.RWMutex
	configs   map[string]Config
	providers map[string]Provider

	cache   *responseCache
	usage   *usageTracker
	limiter *RateLimiter
	logger  logging.Logger

	defaultTimeout time.Duration
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Logger logging.Logger
	// RatePerSecond caps outbound provider calls. Zero disables limiting.
	RatePerSecond float64
	Burst         int
	// DefaultTimeout applies to provider calls whose Config has no Timeout.
	DefaultTimeout time.Duration
}

// NewManager constructs an empty manager with optional overrides.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Logger:         logging.NoOpLogger{},
		Burst:          1,
		DefaultTimeout: 2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		configs:        make(map[string]Config),
		providers:      make(map[string]Provider),
		cache:          newResponseCache(),
		usage:          newUsageTracker(),
		limiter:        NewRateLimiter(opts.RatePerSecond, opts.Burst),
		logger:         opts.Logger,
		defaultTimeout: opts.DefaultTimeout,
	}
}

// RegisterProvider makes a vendor implementation available to configs.
func (m *Manager) RegisterProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// Configure upserts a provider/model config keyed by Config.Key.
func (m *Manager) Configure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.Key()] = cfg
}

// SetEnabled toggles a configured provider/model in place.
func (m *Manager) SetEnabled(key string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[key]
	if !ok {
		return fmt.Errorf("llm: unknown config %q", key)
	}
	cfg.Enabled = enabled
	m.configs[key] = cfg
	return nil
}

// GetProviderChain filters configs by the selection constraints and orders
// them: ascending cost when speed is preferred, descending declared priority
// otherwise. Ties break on the config key so the chain is deterministic.
func (m *Manager) GetProviderChain(sel Selection) []Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain := make([]Config, 0, len(m.configs))
	for _, cfg := range m.configs {
		if !cfg.Enabled {
			continue
		}
		if sel.MaxCostPer1K > 0 && cfg.CostPer1K > sel.MaxCostPer1K {
			continue
		}
		if sel.RequireStreaming && !cfg.SupportsStreaming {
			continue
		}
		chain = append(chain, cfg)
	}
	sort.Slice(chain, func(i, j int) bool {
		if sel.PreferSpeed {
			if chain[i].CostPer1K != chain[j].CostPer1K {
				return chain[i].CostPer1K < chain[j].CostPer1K
			}
		} else if chain[i].Priority != chain[j].Priority {
			return chain[i].Priority > chain[j].Priority
		}
		return chain[i].Key() < chain[j].Key()
	})
	return chain
}

// Complete serves the request from cache when possible, otherwise walks the
// provider chain in order and returns the first success. Per-provider
// failures increment that provider's error counter and fall through; an
// exhausted chain surfaces as a single AllProvidersFailedError.
func (m *Manager) Complete(ctx context.Context, req Request, selFns ...func(s *Selection)) (*Response, error) {
	sel := Selection{RequireStreaming: req.Stream}
	for _, fn := range selFns {
		fn(&sel)
	}

	var key string
	if !req.Stream {
		key = cacheKey(req)
		if resp, ok := m.cache.get(key); ok {
			m.logger.Debug("completion served from cache")
			return resp, nil
		}
	}

	chain := m.GetProviderChain(sel)
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var attempts []ProviderAttempt
	for _, cfg := range chain {
		resp, err := m.tryProvider(ctx, cfg, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.usage.recordError(cfg.Key())
			m.logger.Warn("provider failed, falling through", "provider", cfg.Key(), "error", err.Error())
			attempts = append(attempts, ProviderAttempt{Key: cfg.Key(), Err: err})
			continue
		}
		if !req.Stream {
			m.cache.put(key, resp)
		}
		return resp, nil
	}
	return nil, &AllProvidersFailedError{Attempts: attempts}
}

func (m *Manager) tryProvider(ctx context.Context, cfg Config, req Request) (*Response, error) {
	m.mu.RLock()
	provider, ok := m.providers[cfg.Provider]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", cfg.Provider)
	}
	if err := m.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := provider.Complete(callCtx, cfg.Model, req)
	latency := time.Since(start)
	if err != nil {
		return nil, err
	}

	resp.Provider = cfg.Provider
	resp.Model = cfg.Model
	resp.Latency = latency
	cost := cfg.CostPer1K * float64(resp.Usage.TotalTokens) / 1000.0
	m.usage.record(cfg.Key(), resp.Usage.TotalTokens, cost, latency)
	m.logger.Debug("completion served", "provider", cfg.Key(), "tokens", resp.Usage.TotalTokens, "latency", latency)
	return resp, nil
}

// CompleteStreaming walks the chain with the same ordered-fallback contract
// but yields content chunks. Streaming responses are never served from or
// written to the cache. A provider that fails before emitting any chunk
// falls through to the next; once chunks have been delivered a failure is
// surfaced to the consumer since the stream can no longer be restarted
// transparently.
func (m *Manager) CompleteStreaming(ctx context.Context, req Request, selFns ...func(s *Selection)) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errCh := make(chan error, 1)

	sel := Selection{RequireStreaming: true}
	for _, fn := range selFns {
		fn(&sel)
	}

	go func() {
		defer close(out)
		defer close(errCh)

		chain := m.GetProviderChain(sel)
		if len(chain) == 0 {
			errCh <- ErrNoProviders
			return
		}

		var attempts []ProviderAttempt
		for _, cfg := range chain {
			delivered, err := m.streamProvider(ctx, cfg, req, out)
			if err == nil {
				return
			}
			if delivered || ctx.Err() != nil {
				errCh <- err
				return
			}
			m.usage.recordError(cfg.Key())
			m.logger.Warn("streaming provider failed, falling through", "provider", cfg.Key(), "error", err.Error())
			attempts = append(attempts, ProviderAttempt{Key: cfg.Key(), Err: err})
		}
		errCh <- &AllProvidersFailedError{Attempts: attempts}
	}()
	return out, errCh
}

// streamProvider pipes one provider's chunks into out. Returns whether any
// chunk was delivered, which decides if a failure may still fall through.
func (m *Manager) streamProvider(ctx context.Context, cfg Config, req Request, out chan<- Chunk) (bool, error) {
	m.mu.RLock()
	provider, ok := m.providers[cfg.Provider]
	m.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("provider %q not registered", cfg.Provider)
	}
	if err := m.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	start := time.Now()
	chunks, errs := provider.Stream(ctx, cfg.Model, req)
	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return delivered, err
			}
			errs = nil
		case chunk, ok := <-chunks:
			if !ok {
				// The producer may have parked a terminal error right
				// before closing the chunk channel.
				if errs != nil {
					if err, pending := <-errs; pending && err != nil {
						return delivered, err
					}
				}
				m.usage.record(cfg.Key(), 0, 0, time.Since(start))
				return delivered, nil
			}
			delivered = true
			select {
			case out <- chunk:
			case <-ctx.Done():
				return delivered, ctx.Err()
			}
		}
	}
}

// UsageReport returns a snapshot of per-provider accounting.
func (m *Manager) UsageReport() map[string]ProviderUsage {
	return m.usage.snapshot()
}

// CacheStats returns a snapshot of cache effectiveness.
func (m *Manager) CacheStats() CacheStats {
	return m.cache.stats()
}
