package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func terminalTask(status TaskStatus) *Task {
	task := NewTask("worker", "noop", nil)
	task.Status = status
	return task
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []TaskStatus
		want     WorkflowStatus
	}{
		{"all completed", []TaskStatus{StatusCompleted, StatusCompleted}, WorkflowCompleted},
		{"mixed outcome", []TaskStatus{StatusCompleted, StatusFailed}, WorkflowPartial},
		{"completed and cancelled", []TaskStatus{StatusCompleted, StatusCancelled}, WorkflowPartial},
		{"all failed", []TaskStatus{StatusFailed, StatusFailed}, WorkflowFailed},
		{"all cancelled", []TaskStatus{StatusCancelled, StatusCancelled}, WorkflowCancelled},
		{"failed and cancelled", []TaskStatus{StatusFailed, StatusCancelled}, WorkflowFailed},
		{"empty batch", nil, WorkflowCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tasks []*Task
			for _, st := range tt.statuses {
				tasks = append(tasks, terminalTask(st))
			}
			assert.Equal(t, tt.want, AggregateStatus(tasks))
		})
	}
}

func TestWorkflowErrors_Unwrap(t *testing.T) {
	inner := &AgentNotFoundError{AgentType: "ghost"}
	err := &WorkflowExecutionError{WorkflowID: "wf-1", Reason: "unroutable task", Err: inner}

	assert.ErrorContains(t, err, "wf-1")
	assert.ErrorAs(t, err, new(*AgentNotFoundError))

	taskErr := &TaskError{TaskID: "t1", AgentType: "worker", Err: inner}
	assert.ErrorAs(t, taskErr, new(*AgentNotFoundError))
}
