package core

import (
	"fmt"
	"time"
)

// TaskStatus enumerates the lifecycle states of a task.
//
// Transitions: PENDING -> QUEUED -> IN_PROGRESS -> {COMPLETED | FAILED |
// CANCELLED | RETRY}. RETRY is not terminal: the orchestrator resubmits the
// task on its next scheduling pass and the task re-enters IN_PROGRESS.
type TaskStatus string

const (
	// StatusPending marks a freshly created task not yet accepted by the orchestrator.
	StatusPending TaskStatus = "pending"
	// StatusQueued marks a task accepted into a workflow awaiting execution.
	StatusQueued TaskStatus = "queued"
	// StatusInProgress marks a task currently executing in an agent.
	StatusInProgress TaskStatus = "in_progress"
	// StatusCompleted marks successful terminal completion.
	StatusCompleted TaskStatus = "completed"
	// StatusFailed marks terminal failure after the retry budget is exhausted.
	StatusFailed TaskStatus = "failed"
	// StatusCancelled marks a task cancelled before completion.
	StatusCancelled TaskStatus = "cancelled"
	// StatusRetry marks a recoverable failure awaiting resubmission.
	StatusRetry TaskStatus = "retry"
)

// IsTerminal reports whether the status is final. RETRY is deliberately
// non-terminal so the orchestrator picks the task up again.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPriority orders tasks for the priority strategy. Lower is more urgent.
type TaskPriority int

const (
	// PriorityCritical preempts all other work.
	PriorityCritical TaskPriority = iota
	// PriorityHigh runs before normal work.
	PriorityHigh
	// PriorityNormal is the default.
	PriorityNormal
	// PriorityLow runs after normal work.
	PriorityLow
	// PriorityBackground runs when nothing else is waiting.
	PriorityBackground
)

// TaskInput carries the free-form payload handed to an agent plus a context
// map for cross-cutting hints (prior experience excerpts, caller metadata).
type TaskInput struct {
	Payload map[string]any `json:"payload"`
	Context map[string]any `json:"context,omitempty"`
}

// Artifact references a side output produced during task execution.
type Artifact struct {
	Name        string            `json:"name"`
	ContentType string            `json:"content_type,omitempty"`
	Content     string            `json:"content,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TaskOutput is the result of a successful execution. It is present on a
// task if and only if the task reached COMPLETED.
type TaskOutput struct {
	Result    any            `json:"result"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
}

// Task is the unit of work submitted to the orchestrator.
//
// A task is created by a caller, mutated only by the orchestrator and the
// owning agent during Run, and treated as immutable once terminal. Tasks are
// not internally locked: the scheduling strategies guarantee a single
// goroutine mutates any given task at a time.
type Task struct {
	ID           string         `json:"id"`
	Type         string         `json:"task_type"`
	AgentType    string         `json:"agent_type"`
	Input        TaskInput      `json:"input"`
	Output       *TaskOutput    `json:"output,omitempty"`
	Status       TaskStatus     `json:"status"`
	Priority     TaskPriority   `json:"priority"`
	Dependencies []string       `json:"dependencies,omitempty"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	Created      time.Time      `json:"created"`
	Started      time.Time      `json:"started,omitzero"`
	Completed    time.Time      `json:"completed,omitzero"`
	Error        string         `json:"error,omitempty"`
	CancelReason string         `json:"cancel_reason,omitempty"`
}

// TaskOption customizes a task at construction time.
type TaskOption func(*Task)

// WithPriority sets the scheduling priority.
func WithPriority(p TaskPriority) TaskOption {
	return func(t *Task) { t.Priority = p }
}

// WithDependencies declares task ids that must complete before this task runs.
func WithDependencies(ids ...string) TaskOption {
	return func(t *Task) { t.Dependencies = append(t.Dependencies, ids...) }
}

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) TaskOption {
	return func(t *Task) { t.MaxRetries = n }
}

// WithContext seeds the task's context map.
func WithContext(ctx map[string]any) TaskOption {
	return func(t *Task) { t.Input.Context = ctx }
}

// WithTaskID overrides the generated id. Useful when dependency edges are
// declared before the tasks themselves are built.
func WithTaskID(id string) TaskOption {
	return func(t *Task) { t.ID = id }
}

// NewTask builds a PENDING task routed to agents of the given type.
func NewTask(agentType, taskType string, payload map[string]any, optFns ...TaskOption) *Task {
	t := &Task{
		ID:         NewID(),
		Type:       taskType,
		AgentType:  agentType,
		Input:      TaskInput{Payload: payload},
		Status:     StatusPending,
		Priority:   PriorityNormal,
		MaxRetries: 3,
		Created:    time.Now().UTC(),
	}
	for _, fn := range optFns {
		fn(t)
	}
	return t
}

// IsReady reports whether every declared dependency id is present in the
// completed set. Dependencies are AND-combined.
func (t *Task) IsReady(completed map[string]struct{}) bool {
	for _, dep := range t.Dependencies {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

// MarkInProgress transitions the task into execution, stamping Started on
// the first entry. Re-entry after RETRY clears the previous error.
func (t *Task) MarkInProgress() {
	t.Status = StatusInProgress
	t.Error = ""
	if t.Started.IsZero() {
		t.Started = time.Now().UTC()
	}
}

// MarkCompleted records the output and finalizes the task. Output presence
// and COMPLETED status change together, keeping the invariant that one never
// appears without the other.
func (t *Task) MarkCompleted(out *TaskOutput) {
	if out == nil {
		out = &TaskOutput{}
	}
	t.Output = out
	t.Error = ""
	t.Status = StatusCompleted
	t.Completed = time.Now().UTC()
}

// MarkCancelled finalizes the task as cancelled. Cancellation is not a
// failure: the reason lands in CancelReason and Error stays empty, which
// only FAILED and RETRY populate.
func (t *Task) MarkCancelled(reason string) {
	t.Status = StatusCancelled
	t.Error = ""
	t.CancelReason = reason
	t.Completed = time.Now().UTC()
}

// RecordFailure applies the retry rule: while budget remains the task moves
// to RETRY and the counter increments; once RetryCount reaches MaxRetries the
// failure is terminal. Returns the resulting status.
func (t *Task) RecordFailure(err error) TaskStatus {
	t.Error = err.Error()
	if t.RetryCount < t.MaxRetries {
		t.RetryCount++
		t.Status = StatusRetry
		return StatusRetry
	}
	t.Status = StatusFailed
	t.Completed = time.Now().UTC()
	return StatusFailed
}

// Fail finalizes the task as FAILED without consuming retry budget. Used for
// structural failures such as routing a task to the wrong agent type.
func (t *Task) Fail(err error) {
	t.Error = err.Error()
	t.Status = StatusFailed
	t.Completed = time.Now().UTC()
}

func (t *Task) String() string {
	return fmt.Sprintf("task %s (%s/%s, %s)", t.ID, t.AgentType, t.Type, t.Status)
}
