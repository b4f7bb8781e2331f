package state

import (
	"errors"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("state: record not found")

// ConversationTurn is one exchange in a multi-turn conversation.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation tracks the multi-turn state an agent accumulates while
// working with a caller or another agent.
type Conversation struct {
	ID      string             `json:"id"`
	AgentID string             `json:"agent_id"`
	Turns   []ConversationTurn `json:"turns"`
	Updated time.Time          `json:"updated"`
}

// Append adds a turn and bumps the Updated timestamp.
func (c *Conversation) Append(role, content string) {
	c.Turns = append(c.Turns, ConversationTurn{Role: role, Content: content, Timestamp: time.Now().UTC()})
	c.Updated = time.Now().UTC()
}

// Checkpoint is a resumable snapshot of workflow progress: which tasks
// reached which status plus free-form resume data.
type Checkpoint struct {
	ID         string                     `json:"id"`
	WorkflowID string                     `json:"workflow_id"`
	TaskStatus map[string]core.TaskStatus `json:"task_status"`
	Data       map[string]any             `json:"data,omitempty"`
	Created    time.Time                  `json:"created"`
}

// Store persists agent state, conversation state and checkpoints, keyed by
// id. The default implementation is in-memory; a durable implementation must
// be substitutable without changing the orchestrator.
type Store interface {
	GetAgentState(agentID string) (*core.AgentState, error)
	SaveAgentState(st *core.AgentState) error
	DeleteAgentState(agentID string) error

	GetConversation(id string) (*Conversation, error)
	SaveConversation(conv *Conversation) error
	DeleteConversation(id string) error

	GetCheckpoint(id string) (*Checkpoint, error)
	SaveCheckpoint(cp *Checkpoint) error
	DeleteCheckpoint(id string) error

	Close() error
}
