package testutil

import (
	"github.com/hupe1980/taskmesh/core"
)

// TaskBuilder provides a fluent helper for constructing tasks in tests.
// Example:
//
//	task := NewTaskBuilder("research", "summarize").ID("t1").Priority(core.PriorityHigh).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type TaskBuilder struct {
	agentType string
	taskType  string
	id        string
	priority  *core.TaskPriority
	deps      []string
	retries   *int
	payload   map[string]any
	ctx       map[string]any
}

// NewTaskBuilder creates a builder for a task routed to agentType with the
// given task type.
func NewTaskBuilder(agentType, taskType string) *TaskBuilder {
	return &TaskBuilder{agentType: agentType, taskType: taskType}
}

// ID overrides the auto-generated task ID (chainable). Use where determinism matters.
func (b *TaskBuilder) ID(id string) *TaskBuilder { b.id = id; return b }

// Priority sets the scheduling priority (chainable).
func (b *TaskBuilder) Priority(p core.TaskPriority) *TaskBuilder { b.priority = &p; return b }

// DependsOn appends dependency task ids (chainable).
func (b *TaskBuilder) DependsOn(ids ...string) *TaskBuilder {
	b.deps = append(b.deps, ids...)
	return b
}

// MaxRetries overrides the default retry budget (chainable).
func (b *TaskBuilder) MaxRetries(n int) *TaskBuilder { b.retries = &n; return b }

// Payload sets a task input payload key/value pair (chainable).
func (b *TaskBuilder) Payload(key string, val any) *TaskBuilder {
	if b.payload == nil {
		b.payload = map[string]any{}
	}
	b.payload[key] = val
	return b
}

// Context sets a task input context key/value pair (chainable).
func (b *TaskBuilder) Context(key string, val any) *TaskBuilder {
	if b.ctx == nil {
		b.ctx = map[string]any{}
	}
	b.ctx[key] = val
	return b
}

// Build returns the assembled *core.Task.
func (b *TaskBuilder) Build() *core.Task {
	var optFns []core.TaskOption
	if b.id != "" {
		optFns = append(optFns, core.WithTaskID(b.id))
	}
	if b.priority != nil {
		optFns = append(optFns, core.WithPriority(*b.priority))
	}
	if len(b.deps) > 0 {
		optFns = append(optFns, core.WithDependencies(b.deps...))
	}
	if b.retries != nil {
		optFns = append(optFns, core.WithMaxRetries(*b.retries))
	}
	if b.ctx != nil {
		optFns = append(optFns, core.WithContext(b.ctx))
	}
	return core.NewTask(b.agentType, b.taskType, b.payload, optFns...)
}
