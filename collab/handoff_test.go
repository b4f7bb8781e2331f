package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
)

func TestHandoff_Immediate(t *testing.T) {
	h := NewHandoff(HandoffImmediate)
	task := core.NewTask("researcher", "summarize", nil)

	result, err := h.Execute(HandoffRequest{Task: task, From: "researcher", To: "writer"})
	require.NoError(t, err)
	assert.Equal(t, HandoffCompleted, result.Status)
	assert.Equal(t, "writer", task.AgentType)
}

func TestHandoff_QueuedAndClaim(t *testing.T) {
	h := NewHandoff(HandoffQueued)
	task := core.NewTask("researcher", "summarize", nil)

	result, err := h.Execute(HandoffRequest{Task: task, From: "researcher", To: "writer"})
	require.NoError(t, err)
	assert.Equal(t, HandoffPending, result.Status)
	require.NotEmpty(t, result.PendingID)
	// Ownership does not move until the target claims.
	assert.Equal(t, "researcher", task.AgentType)
	assert.Equal(t, []string{result.PendingID}, h.Pending())

	claimed, err := h.Claim(result.PendingID)
	require.NoError(t, err)
	assert.Equal(t, HandoffCompleted, claimed.Status)
	assert.Equal(t, "writer", task.AgentType)
	assert.Empty(t, h.Pending())

	_, err = h.Claim(result.PendingID)
	assert.Error(t, err)
}

func TestHandoff_Conditional(t *testing.T) {
	h := NewHandoff(HandoffConditional)
	task := core.NewTask("researcher", "summarize", nil)

	result, err := h.Execute(HandoffRequest{
		Task:      task,
		From:      "researcher",
		To:        "writer",
		Condition: map[string]any{"phase": "draft-ready"},
		State:     map[string]any{"phase": "researching"},
	})
	require.NoError(t, err)
	assert.Equal(t, HandoffSkipped, result.Status)
	assert.Equal(t, "researcher", task.AgentType)

	result, err = h.Execute(HandoffRequest{
		Task:      task,
		From:      "researcher",
		To:        "writer",
		Condition: map[string]any{"phase": "draft-ready"},
		State:     map[string]any{"phase": "draft-ready", "extra": true},
	})
	require.NoError(t, err)
	assert.Equal(t, HandoffCompleted, result.Status)
	assert.Equal(t, "writer", task.AgentType)
}

func TestHandoff_Gradual(t *testing.T) {
	h := NewHandoff(HandoffGradual)
	task := core.NewTask("researcher", "summarize", nil)

	result, err := h.Execute(HandoffRequest{Task: task, From: "researcher", To: "writer", Overlap: 5 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, HandoffPending, result.Status)
	assert.Equal(t, 5*time.Minute, result.Overlap)
	require.NotEmpty(t, result.PendingID)
}

func TestHandoff_Validate(t *testing.T) {
	h := NewHandoff(HandoffImmediate)
	task := core.NewTask("researcher", "summarize", nil)

	_, err := h.Execute(HandoffRequest{From: "a", To: "b"})
	assert.Error(t, err)
	_, err = h.Execute(HandoffRequest{Task: task, To: "b"})
	assert.Error(t, err)
	_, err = h.Execute(HandoffRequest{Task: task, From: "a"})
	assert.Error(t, err)

	cond := NewHandoff(HandoffConditional)
	_, err = cond.Execute(HandoffRequest{Task: task, From: "a", To: "b"})
	assert.Error(t, err)
}
