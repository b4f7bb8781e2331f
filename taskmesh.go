// Package taskmesh provides a high-level façade over the core orchestrator
// and service abstractions (state, cognitive memory, LLM routing & logging)
// enabling rapid construction of multi-agent task systems. Most applications
// interact with this package by:
//  1. Creating a TaskMesh via New() (optionally overriding default in-memory services)
//  2. Registering one agent per agent type
//  3. Submitting single tasks (ExecuteTask) or batches under a scheduling
//     strategy (ExecuteWorkflow)
//
// The façade delegates scheduling to orchestrator.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// state store and a structured logger.
package taskmesh

import (
	"context"

	"github.com/hupe1980/taskmesh/agent"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/orchestrator"
	"github.com/hupe1980/taskmesh/state"
)

// Options configures the TaskMesh instance.
type Options struct {
	// StateStore persists agent state, conversations and workflow
	// checkpoints. Defaults to an in-memory implementation.
	StateStore state.Store

	// Memory is the shared cognitive memory agents record experience into.
	// Nil constructs one over an in-memory vector store.
	Memory *memory.CognitiveMemory

	// MemoryAugmentation injects relevant prior experience into task context
	// before each execution.
	MemoryAugmentation bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TaskMesh is the high-level façade aggregating the orchestrator and its
// services.
type TaskMesh struct {
	opts Options
	orch *orchestrator.Orchestrator
}

// New creates a new TaskMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		StateStore: state.NewInMemoryStore(),
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Memory == nil {
		opts.Memory = memory.New(memory.NewInMemoryVectorStore(), func(o *memory.Options) {
			o.Logger = opts.Logger
		})
	}

	orch := orchestrator.New(func(o *orchestrator.Options) {
		o.Store = opts.StateStore
		o.Memory = opts.Memory
		o.MemoryAugmentation = opts.MemoryAugmentation
		o.Logger = opts.Logger
	})

	return &TaskMesh{opts: opts, orch: orch}
}

// RegisterAgent binds an agent to its agent type in the orchestrator.
func (m *TaskMesh) RegisterAgent(a agent.Agent) error { return m.orch.RegisterAgent(a) }

// ExecuteTask dispatches a single task to its agent and drives it to a
// terminal status.
func (m *TaskMesh) ExecuteTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	return m.orch.ExecuteTask(ctx, task)
}

// ExecuteWorkflow runs a task batch under the given scheduling strategy.
func (m *TaskMesh) ExecuteWorkflow(ctx context.Context, tasks []*core.Task, strategy core.ExecutionStrategy) (*core.WorkflowResult, error) {
	return m.orch.ExecuteWorkflow(ctx, tasks, strategy)
}

// GetAgentStatus reports health for every registered agent keyed by type.
func (m *TaskMesh) GetAgentStatus() map[string]agent.Health { return m.orch.GetAgentStatus() }

// Memory exposes the shared cognitive memory.
func (m *TaskMesh) Memory() *memory.CognitiveMemory { return m.opts.Memory }

// Shutdown drains in-flight workflows, flushes memory hooks and closes the
// state store.
func (m *TaskMesh) Shutdown() error {
	if err := m.orch.Shutdown(); err != nil {
		return err
	}
	return m.opts.StateStore.Close()
}
