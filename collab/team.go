package collab

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// ErrTeamClosed is returned for operations on a closed team.
var ErrTeamClosed = errors.New("collab: team closed")

// Team is a lightweight pub/queue for inter-agent messaging. Each member
// owns a buffered inbox channel; sends are non-blocking and fail fast when
// an inbox is full rather than stalling the sender's task.
type Team struct {
	name   string
	buffer int

	mu      sync.RWMutex
	inboxes map[string]chan Message
	closed  bool
}

// TeamOptions configures a Team.
type TeamOptions struct {
	// InboxBuffer sets per-member channel capacity. Defaults to 32.
	InboxBuffer int
}

// NewTeam creates an empty named team.
func NewTeam(name string, optFns ...func(o *TeamOptions)) *Team {
	opts := TeamOptions{InboxBuffer: 32}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Team{name: name, buffer: opts.InboxBuffer, inboxes: make(map[string]chan Message)}
}

// Name returns the team name.
func (t *Team) Name() string { return t.name }

// Join registers a member and returns its inbox. Joining twice is an error.
func (t *Team) Join(member string) (<-chan Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTeamClosed
	}
	if _, ok := t.inboxes[member]; ok {
		return nil, fmt.Errorf("collab: member %q already joined", member)
	}
	inbox := make(chan Message, t.buffer)
	t.inboxes[member] = inbox
	return inbox, nil
}

// Leave removes a member, closing its inbox.
func (t *Team) Leave(member string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inbox, ok := t.inboxes[member]; ok {
		close(inbox)
		delete(t.inboxes, member)
	}
}

// Send routes a message to its recipient. An empty To broadcasts to every
// member except the sender.
func (t *Team) Send(msg Message) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTeamClosed
	}
	if msg.To == "" {
		for member, inbox := range t.inboxes {
			if member == msg.From {
				continue
			}
			select {
			case inbox <- msg:
			default:
				// Full inbox: drop for that member, keep broadcasting.
			}
		}
		return nil
	}

	inbox, ok := t.inboxes[msg.To]
	if !ok {
		return fmt.Errorf("collab: unknown recipient %q", msg.To)
	}
	select {
	case inbox <- msg:
		return nil
	default:
		return fmt.Errorf("collab: inbox full for %q", msg.To)
	}
}

// Delegate sends a task delegation to the target member.
func (t *Team) Delegate(req DelegationRequest) error {
	return t.Send(Message{From: req.From, To: req.To, Kind: KindDelegation, Body: req})
}

// RequestAssistance broadcasts a call for help.
func (t *Team) RequestAssistance(req AssistanceRequest) error {
	return t.Send(Message{From: req.From, Kind: KindAssistance, Body: req})
}

// ShareKnowledge broadcasts learned knowledge to the team.
func (t *Team) ShareKnowledge(share KnowledgeShare) error {
	return t.Send(Message{From: share.From, Kind: KindKnowledge, Body: share})
}

// Members returns the current member names.
func (t *Team) Members() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := make([]string, 0, len(t.inboxes))
	for m := range t.inboxes {
		members = append(members, m)
	}
	return members
}

// Close closes every inbox and rejects further sends.
func (t *Team) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for member, inbox := range t.inboxes {
		close(inbox)
		delete(t.inboxes, member)
	}
}
