package testutil

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/taskmesh/agent"
	"github.com/hupe1980/taskmesh/core"
)

// StubAgent is a scriptable agent for tests. By default every execution
// succeeds with an empty output; set Fn to script custom behavior or
// FailFirst to fail the first n executions.
type StubAgent struct {
	agent.BaseAgent

	// Fn replaces the default execute behavior when non-nil.
	Fn func(ctx context.Context, task *core.Task) (*core.TaskOutput, error)
	// FailFirst makes the first n executions return Err.
	FailFirst int32
	// Err is the error returned while FailFirst has budget left.
	Err error

	calls int32
}

// NewStubAgent builds a stub agent registered under agentType.
func NewStubAgent(agentType string, caps ...core.Capability) *StubAgent {
	return &StubAgent{BaseAgent: agent.NewBaseAgent(core.NewAgentConfig(agentType), caps...)}
}

// Execute runs the scripted behavior and counts calls.
func (s *StubAgent) Execute(ctx context.Context, task *core.Task) (*core.TaskOutput, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if s.Fn != nil {
		return s.Fn(ctx, task)
	}
	if n <= atomic.LoadInt32(&s.FailFirst) {
		return nil, s.Err
	}
	return &core.TaskOutput{Result: "ok", Metadata: map[string]any{"call": int(n)}}, nil
}

// Calls reports how many times Execute ran.
func (s *StubAgent) Calls() int { return int(atomic.LoadInt32(&s.calls)) }
