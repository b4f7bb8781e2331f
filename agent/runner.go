package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/state"
)

// Runner binds an Agent implementation to the fixed execution lifecycle the
// orchestrator drives: routing checks, status transitions, retry accounting,
// rolling metrics and optional memory hooks. Run is deliberately not part of
// the Agent interface so implementations cannot override it.
//
// All exported methods are safe for concurrent use; the orchestrator's
// scheduling strategies guarantee one goroutine per task, but several tasks
// may run on the same agent at once.
type Runner struct {
	agent  Agent
	memory *memory.CognitiveMemory
	store  state.Store
	logger logging.Logger

	augment      bool
	topK         int
	minRelevance float64

	state *core.AgentState

	mu      sync.Mutex
	metrics Metrics

	hooks sync.WaitGroup
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Memory attaches a cognitive memory for post-execution experience
	// recording and, when MemoryAugmentation is set, pre-execution recall.
	Memory *memory.CognitiveMemory
	// MemoryAugmentation injects relevant prior experiences into the task
	// context before Execute.
	MemoryAugmentation bool
	// TopK bounds how many prior experiences are recalled. Defaults to 3.
	TopK int
	// MinRelevance filters recalled experiences. Defaults to 0.7.
	MinRelevance float64
	// Store persists the agent's state bag after each run.
	Store  state.Store
	Logger logging.Logger
}

// NewRunner wraps the agent with lifecycle bookkeeping.
func NewRunner(a Agent, optFns ...func(o *RunnerOptions)) *Runner {
	opts := RunnerOptions{
		TopK:         3,
		MinRelevance: memory.DefaultMinRelevance,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		agent:        a,
		memory:       opts.Memory,
		store:        opts.Store,
		logger:       opts.Logger,
		augment:      opts.MemoryAugmentation,
		topK:         opts.TopK,
		minRelevance: opts.MinRelevance,
		state:        core.NewAgentState(a.Config().ID),
	}
}

// Agent returns the wrapped implementation.
func (r *Runner) Agent() Agent { return r.agent }

// State returns the agent-owned mutable state bag.
func (r *Runner) State() *core.AgentState { return r.state }

// Run executes one task through the full lifecycle and returns it in a
// terminal or RETRY status. Task-level failures are captured into the task,
// never propagated: the retry rule decides between RETRY and FAILED.
func (r *Runner) Run(ctx context.Context, task *core.Task) *core.Task {
	cfg := r.agent.Config()
	if task.AgentType != cfg.AgentType {
		// Routing errors are structural, not transient: fail immediately
		// without consuming retry budget.
		task.Fail(fmt.Errorf("agent type mismatch: task wants %q, agent is %q", task.AgentType, cfg.AgentType))
		r.logger.Warn("task rejected", "task_id", task.ID, "want", task.AgentType, "got", cfg.AgentType)
		return task
	}
	if err := ctx.Err(); err != nil {
		task.MarkCancelled(err.Error())
		return task
	}

	task.MarkInProgress()
	start := time.Now()

	out, err := r.execute(ctx, task)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Cancellation is not a task failure and consumes no retry budget.
			task.MarkCancelled(ctx.Err().Error())
			r.logger.Info("task cancelled", "task_id", task.ID)
			return task
		}
		status := task.RecordFailure(&core.TaskError{TaskID: task.ID, AgentType: cfg.AgentType, Err: err})
		r.recordMetrics(elapsed, false, nil)
		r.logger.Error("task execution failed", "task_id", task.ID, "status", string(status), "retry_count", task.RetryCount, "error", err.Error())
		r.recordExperience(task, err)
		return task
	}

	task.MarkCompleted(out)
	r.recordMetrics(elapsed, true, out)
	r.logger.Info("task completed", "task_id", task.ID, "agent_type", cfg.AgentType, "duration", elapsed)
	r.recordExperience(task, nil)
	r.persistState()
	return task
}

// execute optionally augments the task context with recalled experience
// before delegating to the agent implementation.
func (r *Runner) execute(ctx context.Context, task *core.Task) (*core.TaskOutput, error) {
	if r.augment && r.memory != nil {
		r.injectExperience(ctx, task)
	}
	return r.agent.Execute(ctx, task)
}

// injectExperience queries the memory for the most relevant prior SUCCESS and
// PROCEDURAL entries and writes a formatted excerpt into the task context.
// Recall failures are logged and ignored: augmentation is best effort.
func (r *Runner) injectExperience(ctx context.Context, task *core.Task) {
	result, err := r.memory.QueryMemory(ctx, r.recallQuery(task), func(o *memory.QueryOptions) {
		o.TopK = r.topK
		o.MinRelevance = r.minRelevance
		o.Types = []memory.MemoryType{memory.Success, memory.Procedural}
	})
	if err != nil {
		r.logger.Warn("memory recall failed", "task_id", task.ID, "error", err.Error())
		return
	}
	if len(result.Entries) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("Relevant prior experience:\n")
	for _, e := range result.Entries {
		fmt.Fprintf(&b, "- [%s] %s (relevance %.2f)\n", e.Type, e.Content, e.Relevance)
	}
	if task.Input.Context == nil {
		task.Input.Context = map[string]any{}
	}
	task.Input.Context["prior_experience"] = b.String()
}

func (r *Runner) recallQuery(task *core.Task) string {
	var b strings.Builder
	b.WriteString(task.Type)
	for _, v := range task.Input.Payload {
		if s, ok := v.(string); ok {
			b.WriteString(" ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// recordExperience asynchronously writes a SUCCESS or ERROR memory entry
// tagged with the task and agent ids. It never blocks nor fails the task's
// terminal status: storage errors are logged and panics recovered.
func (r *Runner) recordExperience(task *core.Task, execErr error) {
	if r.memory == nil {
		return
	}
	cfg := r.agent.Config()
	r.hooks.Add(1)
	go func() {
		defer r.hooks.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("memory hook panicked", "task_id", task.ID, "panic", fmt.Sprintf("%v", rec))
			}
		}()

		mtype := memory.Success
		content := fmt.Sprintf("Task %s (%s) completed successfully", task.ID, task.Type)
		meta := map[string]any{"task_type": task.Type}
		if execErr != nil {
			mtype = memory.Error
			content = fmt.Sprintf("Task %s (%s) failed: %v", task.ID, task.Type, execErr)
			meta["error"] = execErr.Error()
		}

		_, err := r.memory.StoreMemory(context.Background(), mtype, content, func(o *memory.StoreOptions) {
			o.AgentID = cfg.ID
			o.TaskID = task.ID
			o.Metadata = meta
		})
		if err != nil {
			r.logger.Warn("memory store failed", "task_id", task.ID, "error", err.Error())
		}
	}()
}

// persistState snapshots the agent state bag through the state store.
func (r *Runner) persistState() {
	if r.store == nil {
		return
	}
	if err := r.store.SaveAgentState(r.state); err != nil {
		r.logger.Warn("agent state persistence failed", "agent_id", r.state.AgentID, "error", err.Error())
	}
}

func (r *Runner) recordMetrics(elapsed time.Duration, success bool, out *core.TaskOutput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &r.metrics
	m.TasksExecuted++
	if success {
		m.TasksSucceeded++
	} else {
		m.TasksFailed++
	}
	m.AvgExecution += (elapsed - m.AvgExecution) / time.Duration(m.TasksExecuted)
	m.LastActive = time.Now().UTC()
	if out != nil {
		if tokens, ok := out.Metadata["tokens_used"].(int); ok {
			m.TokensUsed += tokens
		}
		if cost, ok := out.Metadata["cost"].(float64); ok {
			m.Cost += cost
		}
	}
}

// Metrics returns a snapshot of the rolling metrics.
func (r *Runner) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Health reports the agent's identity, capabilities and current metrics.
func (r *Runner) Health() Health {
	cfg := r.agent.Config()
	caps := r.agent.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.Name
	}
	return Health{AgentID: cfg.ID, AgentType: cfg.AgentType, Capabilities: names, Metrics: r.Metrics()}
}

// Flush waits for in-flight async memory hooks, bounded by the context.
func (r *Runner) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.hooks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
