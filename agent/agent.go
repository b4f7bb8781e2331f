package agent

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
)

// Agent is the execution contract each specialized worker implements.
//
// Implementations supply the domain logic in Execute; all lifecycle
// bookkeeping (status transitions, retries, metrics, memory hooks) is owned
// by the Runner and cannot be overridden.
type Agent interface {
	// Config returns the immutable construction-time configuration.
	Config() core.AgentConfig
	// Capabilities lists the skills this agent advertises.
	Capabilities() []core.Capability
	// Execute performs the work for one task and returns its output.
	// Implementations must respect context cancellation.
	Execute(ctx context.Context, task *core.Task) (*core.TaskOutput, error)
}

// BaseAgent bundles the identity plumbing of the Agent interface. Embed it
// in concrete agent implementations and supply an Execute method.
type BaseAgent struct {
	cfg  core.AgentConfig
	caps []core.Capability
}

// NewBaseAgent constructs a BaseAgent for the given agent type.
func NewBaseAgent(cfg core.AgentConfig, caps ...core.Capability) BaseAgent {
	return BaseAgent{cfg: cfg, caps: caps}
}

// Config returns the agent's immutable configuration.
func (b *BaseAgent) Config() core.AgentConfig { return b.cfg }

// Capabilities returns a copy of the declared capabilities.
func (b *BaseAgent) Capabilities() []core.Capability {
	out := make([]core.Capability, len(b.caps))
	copy(out, b.caps)
	return out
}
