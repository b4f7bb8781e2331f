package core

import (
	"sync"
	"time"
)

// Capability declares a named skill an agent advertises to the orchestrator
// and to collaborating agents.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AgentConfig captures the immutable construction-time knobs of an agent.
// It is copied on read; nothing mutates it after the agent is built.
type AgentConfig struct {
	ID           string        `json:"id"`
	AgentType    string        `json:"agent_type"`
	Model        string        `json:"model,omitempty"`
	Temperature  float64       `json:"temperature"`
	MaxTokens    int           `json:"max_tokens"`
	Timeout      time.Duration `json:"timeout"`
	Capabilities []string      `json:"capabilities,omitempty"`
	Tools        []string      `json:"tools,omitempty"`
}

// NewAgentConfig returns a config with conventional defaults for the type.
func NewAgentConfig(agentType string) AgentConfig {
	return AgentConfig{
		ID:          NewID(),
		AgentType:   agentType,
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     2 * time.Minute,
	}
}

// AgentState is the per-agent mutable key/value bag. It is owned exclusively
// by its agent and persisted through a state.Store; concurrent reads are safe
// but writes only ever come from the owning agent.
type AgentState struct {
	AgentID string         `json:"agent_id"`
	Data    map[string]any `json:"data"`
	Updated time.Time      `json:"updated"`

	mu sync.RWMutex
}

// NewAgentState creates an empty state bag for the agent.
func NewAgentState(agentID string) *AgentState {
	return &AgentState{AgentID: agentID, Data: map[string]any{}, Updated: time.Now().UTC()}
}

// Set stores a value and bumps the Updated timestamp.
func (s *AgentState) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	s.Data[key] = value
	s.Updated = time.Now().UTC()
}

// Get returns the value and existence flag for a key.
func (s *AgentState) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Data[key]
	return v, ok
}

// Update merges the delta into the bag under a single lock.
func (s *AgentState) Update(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	for k, v := range delta {
		s.Data[k] = v
	}
	s.Updated = time.Now().UTC()
}

// Snapshot returns a shallow copy of the bag safe for iteration outside the
// lock, used by conditional handoffs to evaluate state predicates.
func (s *AgentState) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		out[k] = v
	}
	return out
}
