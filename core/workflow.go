package core

import "time"

// ExecutionStrategy selects the scheduling algorithm for a workflow.
type ExecutionStrategy string

const (
	// StrategySequential runs tasks one at a time in list order.
	StrategySequential ExecutionStrategy = "sequential"
	// StrategyParallel launches every task concurrently with per-task
	// failure isolation.
	StrategyParallel ExecutionStrategy = "parallel"
	// StrategyPriority stable-sorts by ascending priority, then runs
	// sequentially.
	StrategyPriority ExecutionStrategy = "priority"
	// StrategyDependency executes dependency-ordered wavefronts, each round's
	// ready batch in parallel.
	StrategyDependency ExecutionStrategy = "dependency"
)

// WorkflowStatus is the aggregate outcome of a workflow run.
type WorkflowStatus string

const (
	// WorkflowRunning marks a workflow still in flight.
	WorkflowRunning WorkflowStatus = "running"
	// WorkflowCompleted means every task reached COMPLETED.
	WorkflowCompleted WorkflowStatus = "completed"
	// WorkflowPartial means all tasks are terminal, at least one completed
	// and at least one did not.
	WorkflowPartial WorkflowStatus = "partial"
	// WorkflowFailed means no task completed, or a structural error aborted
	// the run.
	WorkflowFailed WorkflowStatus = "failed"
	// WorkflowCancelled means the run was cancelled before all tasks finished.
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// WorkflowResult aggregates a batch execution: the full task list with their
// terminal states plus overall timing.
type WorkflowResult struct {
	ID       string            `json:"id"`
	Strategy ExecutionStrategy `json:"strategy"`
	Tasks    []*Task           `json:"tasks"`
	Status   WorkflowStatus    `json:"status"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished,omitzero"`
}

// AggregateStatus derives the workflow status from its tasks. Every task
// COMPLETED yields COMPLETED; a mix of completed and non-completed terminal
// tasks yields PARTIAL; no completions yields FAILED.
func AggregateStatus(tasks []*Task) WorkflowStatus {
	if len(tasks) == 0 {
		return WorkflowCompleted
	}
	completed := 0
	cancelled := 0
	for _, t := range tasks {
		switch t.Status {
		case StatusCompleted:
			completed++
		case StatusCancelled:
			cancelled++
		}
	}
	switch {
	case completed == len(tasks):
		return WorkflowCompleted
	case completed > 0:
		return WorkflowPartial
	case cancelled > 0 && cancelled == len(tasks)-completed:
		return WorkflowCancelled
	default:
		return WorkflowFailed
	}
}
