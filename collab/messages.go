package collab

import (
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// MessageKind classifies inter-agent messages.
type MessageKind string

const (
	// KindDirect is a free-form point-to-point message.
	KindDirect MessageKind = "direct"
	// KindBroadcast fans the message out to every team member.
	KindBroadcast MessageKind = "broadcast"
	// KindDelegation transfers a task to another agent.
	KindDelegation MessageKind = "delegation"
	// KindAssistance asks another agent for help on a problem.
	KindAssistance MessageKind = "assistance"
	// KindKnowledge shares learned knowledge with the team.
	KindKnowledge MessageKind = "knowledge"
)

// Message is the envelope routed through a Team's queues. Messages are
// ephemeral: they live only in channel buffers and are never persisted.
type Message struct {
	ID     string         `json:"id"`
	From   string         `json:"from"`
	To     string         `json:"to,omitempty"` // empty means broadcast
	Kind   MessageKind    `json:"kind"`
	Body   any            `json:"body,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
	SentAt time.Time      `json:"sent_at"`
}

// DelegationRequest asks the target agent to take over a task.
type DelegationRequest struct {
	Task   *core.Task `json:"task"`
	From   string     `json:"from"`
	To     string     `json:"to"`
	Reason string     `json:"reason,omitempty"`
}

// AssistanceRequest asks any capable agent for help with a problem.
type AssistanceRequest struct {
	From    string         `json:"from"`
	Topic   string         `json:"topic"`
	Problem string         `json:"problem"`
	Context map[string]any `json:"context,omitempty"`
}

// KnowledgeShare distributes a learned fact or technique to the team.
type KnowledgeShare struct {
	From     string         `json:"from"`
	Topic    string         `json:"topic"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
