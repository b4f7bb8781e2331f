package llm

import (
	"fmt"
	"time"
)

// Config describes one provider/model pairing the fallback manager may use.
// Priority orders the default chain (higher first); CostPer1K feeds both the
// speed-preferring ordering and usage cost accounting.
type Config struct {
	Provider          string        `json:"provider"`
	Model             string        `json:"model"`
	Priority          int           `json:"priority"`
	CostPer1K         float64       `json:"cost_per_1k_tokens"`
	Enabled           bool          `json:"enabled"`
	SupportsStreaming bool          `json:"supports_streaming"`
	Timeout           time.Duration `json:"timeout"`
}

// Key returns the provider:model identifier used throughout the manager's
// config map, usage counters and error counters.
func (c Config) Key() string {
	return fmt.Sprintf("%s:%s", c.Provider, c.Model)
}

// Selection filters and orders the provider chain for one request.
type Selection struct {
	// MaxCostPer1K excludes configs above this cost. Zero means no limit.
	MaxCostPer1K float64
	// RequireStreaming excludes configs that cannot stream.
	RequireStreaming bool
	// PreferSpeed orders by ascending cost instead of descending priority.
	PreferSpeed bool
}
