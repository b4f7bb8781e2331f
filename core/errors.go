package core

import (
	"fmt"
	"strings"
)

// AgentNotFoundError reports a task routed to an agent type nobody registered.
type AgentNotFoundError struct {
	AgentType string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("no agent registered for type %q", e.AgentType)
}

// DuplicateAgentError reports a second registration for an agent type.
type DuplicateAgentError struct {
	AgentType string
}

func (e *DuplicateAgentError) Error() string {
	return fmt.Sprintf("agent already registered for type %q", e.AgentType)
}

// WorkflowExecutionError is fatal to a single workflow run: circular or
// unsatisfiable dependencies, or an uncaught failure in the scheduling loop.
type WorkflowExecutionError struct {
	WorkflowID string
	Reason     string
	StuckTasks []string
	Err        error
}

func (e *WorkflowExecutionError) Error() string {
	msg := fmt.Sprintf("workflow %s: %s", e.WorkflowID, e.Reason)
	if len(e.StuckTasks) > 0 {
		msg += fmt.Sprintf(" (stuck tasks: %s)", strings.Join(e.StuckTasks, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WorkflowExecutionError) Unwrap() error { return e.Err }

// TaskError wraps a task-level execution failure with its origin. Task errors
// are recoverable locally (retry budget) and never abort a workflow.
type TaskError struct {
	TaskID    string
	AgentType string
	Err       error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed in agent %s: %v", e.TaskID, e.AgentType, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
