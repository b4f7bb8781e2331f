package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/agent"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/state"
)

// Orchestrator composes the library: it registers one agent per agent type,
// accepts batches of tasks and executes them under a chosen scheduling
// strategy, aggregating the outcome into a WorkflowResult.
//
// The agent registry and the running-workflow table are shared mutable state
// and are guarded by the mutex; task execution itself happens outside the
// lock.
type Orchestrator struct {
	mu        sync.RWMutex
	runners   map[string]*agent.Runner
	workflows map[string]*workflowHandle

	store   state.Store
	memory  *memory.CognitiveMemory
	augment bool
	logger  logging.Logger

	drainTimeout time.Duration
}

type workflowHandle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures an Orchestrator.
type Options struct {
	// Store persists agent state and per-round workflow checkpoints. Nil
	// disables persistence.
	Store state.Store
	// Memory is handed to every registered agent's runner for experience
	// recording and recall. Nil disables memory hooks.
	Memory *memory.CognitiveMemory
	// MemoryAugmentation turns on pre-execution experience recall.
	MemoryAugmentation bool
	// DrainTimeout bounds how long Shutdown waits for in-flight workflows.
	DrainTimeout time.Duration
	Logger       logging.Logger
}

// New constructs an empty orchestrator with optional overrides.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		DrainTimeout: 60 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		runners:      make(map[string]*agent.Runner),
		workflows:    make(map[string]*workflowHandle),
		store:        opts.Store,
		memory:       opts.Memory,
		augment:      opts.MemoryAugmentation,
		logger:       opts.Logger,
		drainTimeout: opts.DrainTimeout,
	}
}

// RegisterAgent binds an agent to its agent type. One instance per type;
// duplicate registration is an error.
func (o *Orchestrator) RegisterAgent(a agent.Agent) error {
	agentType := a.Config().AgentType
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.runners[agentType]; ok {
		return &core.DuplicateAgentError{AgentType: agentType}
	}
	o.runners[agentType] = agent.NewRunner(a, func(ro *agent.RunnerOptions) {
		ro.Memory = o.memory
		ro.MemoryAugmentation = o.augment
		ro.Store = o.store
		ro.Logger = o.logger
	})
	o.logger.Info("agent registered", "agent_type", agentType)
	return nil
}

// Runner exposes the lifecycle wrapper for an agent type.
func (o *Orchestrator) Runner(agentType string) (*agent.Runner, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runners[agentType]
	return r, ok
}

// GetAgentStatus reports health for every registered agent keyed by type.
func (o *Orchestrator) GetAgentStatus() map[string]agent.Health {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]agent.Health, len(o.runners))
	for agentType, r := range o.runners {
		out[agentType] = r.Health()
	}
	return out
}

// ExecuteTask dispatches a single task directly to its agent, driving it to
// a terminal status (retries included). A task routed to an unregistered
// agent type returns the distinguished AgentNotFoundError.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	runner, ok := o.Runner(task.AgentType)
	if !ok {
		return nil, &core.AgentNotFoundError{AgentType: task.AgentType}
	}
	task.Status = core.StatusQueued
	o.runToTerminal(ctx, runner, task)
	return task, nil
}

// runToTerminal drives one task through Run until it leaves RETRY. The task
// re-enters IN_PROGRESS for each retry attempt.
func (o *Orchestrator) runToTerminal(ctx context.Context, runner *agent.Runner, task *core.Task) {
	for {
		runner.Run(ctx, task)
		if task.Status != core.StatusRetry {
			return
		}
		if err := ctx.Err(); err != nil {
			task.MarkCancelled(err.Error())
			return
		}
	}
}

// ExecuteWorkflow runs the batch under the given strategy and returns the
// aggregated result. Structural errors (unregistered agent types, dependency
// cycles) are fatal to this workflow only; task-level failures are captured
// in the tasks themselves.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, tasks []*core.Task, strategy core.ExecutionStrategy) (*core.WorkflowResult, error) {
	result := &core.WorkflowResult{
		ID:       core.NewID(),
		Strategy: strategy,
		Tasks:    tasks,
		Status:   core.WorkflowRunning,
		Started:  time.Now().UTC(),
	}

	if err := o.validateRouting(result.ID, tasks); err != nil {
		result.Status = core.WorkflowFailed
		result.Finished = time.Now().UTC()
		return result, err
	}

	wfCtx, cancel := context.WithCancel(ctx)
	handle := &workflowHandle{id: result.ID, cancel: cancel, done: make(chan struct{})}
	o.mu.Lock()
	o.workflows[result.ID] = handle
	o.mu.Unlock()
	defer func() {
		cancel()
		close(handle.done)
		o.mu.Lock()
		delete(o.workflows, result.ID)
		o.mu.Unlock()
	}()

	for _, t := range tasks {
		t.Status = core.StatusQueued
	}

	var err error
	switch strategy {
	case core.StrategySequential:
		o.runSequential(wfCtx, tasks)
	case core.StrategyParallel:
		o.runParallel(wfCtx, tasks)
	case core.StrategyPriority:
		o.runPriority(wfCtx, tasks)
	case core.StrategyDependency:
		err = o.runDependency(wfCtx, result.ID, tasks)
	default:
		err = &core.WorkflowExecutionError{WorkflowID: result.ID, Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}

	result.Finished = time.Now().UTC()
	if err != nil {
		result.Status = core.WorkflowFailed
		o.logger.Error("workflow failed", "workflow_id", result.ID, "error", err.Error())
		return result, err
	}
	if ctx.Err() != nil {
		o.cancelRemaining(tasks, ctx.Err())
	}
	result.Status = core.AggregateStatus(tasks)
	o.logger.Info("workflow finished", "workflow_id", result.ID, "strategy", string(strategy), "tasks", len(tasks), "status", string(result.Status), "duration", result.Finished.Sub(result.Started))
	return result, nil
}

// validateRouting fails fast when any task targets an unregistered agent.
func (o *Orchestrator) validateRouting(workflowID string, tasks []*core.Task) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, t := range tasks {
		if _, ok := o.runners[t.AgentType]; !ok {
			return &core.WorkflowExecutionError{
				WorkflowID: workflowID,
				Reason:     "unroutable task",
				Err:        &core.AgentNotFoundError{AgentType: t.AgentType},
			}
		}
	}
	return nil
}

func (o *Orchestrator) cancelRemaining(tasks []*core.Task, cause error) {
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			t.MarkCancelled(cause.Error())
		}
	}
}

// Shutdown drains currently tracked workflows up to the configured wait,
// flushes agent memory hooks and clears the registry. Best effort: workflows
// still running when the wait expires are cancelled.
func (o *Orchestrator) Shutdown() error {
	o.mu.RLock()
	handles := make([]*workflowHandle, 0, len(o.workflows))
	for _, h := range o.workflows {
		handles = append(handles, h)
	}
	runners := make([]*agent.Runner, 0, len(o.runners))
	for _, r := range o.runners {
		runners = append(runners, r)
	}
	o.mu.RUnlock()

	deadline := time.NewTimer(o.drainTimeout)
	defer deadline.Stop()

	var stragglers int
	for i, h := range handles {
		select {
		case <-h.done:
			continue
		case <-deadline.C:
			// Only workflows still running count as stragglers. Later
			// handles may have drained while we waited on earlier ones.
			for _, rem := range handles[i:] {
				select {
				case <-rem.done:
				default:
					stragglers++
					rem.cancel()
				}
			}
		}
		break
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range runners {
		_ = r.Flush(flushCtx)
	}

	o.mu.Lock()
	o.runners = make(map[string]*agent.Runner)
	o.mu.Unlock()

	if stragglers > 0 {
		return fmt.Errorf("orchestrator: shutdown drained with %d workflows still running", stragglers)
	}
	o.logger.Info("orchestrator shut down")
	return nil
}
