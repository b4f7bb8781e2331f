package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/state"
)

// runSequential executes tasks strictly in submission order, one at a time.
// A task failure does not stop the batch; later tasks still run.
func (o *Orchestrator) runSequential(ctx context.Context, tasks []*core.Task) {
	for _, t := range tasks {
		if ctx.Err() != nil {
			t.MarkCancelled(ctx.Err().Error())
			continue
		}
		o.runKnown(ctx, t)
	}
}

// runParallel fans every task out into its own goroutine. Failures are
// isolated per task.
func (o *Orchestrator) runParallel(ctx context.Context, tasks []*core.Task) {
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *core.Task) {
			defer wg.Done()
			o.runKnown(ctx, t)
		}(t)
	}
	wg.Wait()
}

// runPriority executes sequentially in ascending numeric priority. The sort
// is stable so equal-priority tasks keep submission order.
func (o *Orchestrator) runPriority(ctx context.Context, tasks []*core.Task) {
	ordered := make([]*core.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	o.runSequential(ctx, ordered)
}

// runDependency schedules in wavefront rounds: each round runs, in parallel,
// every not-yet-terminal task whose dependencies are all terminal. A round
// that finds no ready task while non-terminal tasks remain means the
// dependency graph cannot make progress (a cycle, or a dependency on an
// unknown task id). The round count is bounded at twice the task count so a
// malformed graph can never spin forever.
func (o *Orchestrator) runDependency(ctx context.Context, workflowID string, tasks []*core.Task) error {
	completed := make(map[string]struct{}, len(tasks))
	maxRounds := 2 * len(tasks)

	for round := 0; round < maxRounds; round++ {
		var ready []*core.Task
		remaining := 0
		for _, t := range tasks {
			if t.Status.IsTerminal() {
				continue
			}
			remaining++
			if t.IsReady(completed) {
				ready = append(ready, t)
			}
		}
		if remaining == 0 {
			return nil
		}
		if len(ready) == 0 {
			return o.stuckError(workflowID, tasks, completed)
		}

		o.runParallel(ctx, ready)

		for _, t := range tasks {
			if t.Status.IsTerminal() {
				completed[t.ID] = struct{}{}
			}
		}
		o.checkpoint(workflowID, round, tasks)

		if ctx.Err() != nil {
			o.cancelRemaining(tasks, ctx.Err())
			return nil
		}
	}

	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			return o.stuckError(workflowID, tasks, completed)
		}
	}
	return nil
}

func (o *Orchestrator) stuckError(workflowID string, tasks []*core.Task, completed map[string]struct{}) *core.WorkflowExecutionError {
	var stuck []string
	for _, t := range tasks {
		if _, done := completed[t.ID]; !done && !t.Status.IsTerminal() {
			stuck = append(stuck, t.ID)
		}
	}
	return &core.WorkflowExecutionError{
		WorkflowID: workflowID,
		Reason:     "dependency graph cannot make progress",
		StuckTasks: stuck,
	}
}

// checkpoint records the per-task status snapshot after a wavefront round.
func (o *Orchestrator) checkpoint(workflowID string, round int, tasks []*core.Task) {
	if o.store == nil {
		return
	}
	cp := &state.Checkpoint{
		ID:         fmt.Sprintf("%s-round-%d", workflowID, round),
		WorkflowID: workflowID,
		TaskStatus: make(map[string]core.TaskStatus, len(tasks)),
		Created:    time.Now().UTC(),
	}
	for _, t := range tasks {
		cp.TaskStatus[t.ID] = t.Status
	}
	if err := o.store.SaveCheckpoint(cp); err != nil {
		o.logger.Warn("checkpoint save failed", "workflow_id", workflowID, "round", round, "error", err.Error())
	}
}

// runKnown executes a task whose agent type was validated up front. The
// runner lookup can still miss if the registry was cleared mid-flight, in
// which case the task fails in place.
func (o *Orchestrator) runKnown(ctx context.Context, t *core.Task) {
	runner, ok := o.Runner(t.AgentType)
	if !ok {
		t.Fail(&core.AgentNotFoundError{AgentType: t.AgentType})
		return
	}
	o.runToTerminal(ctx, runner, t)
}
