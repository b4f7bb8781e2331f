package state

import (
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// InMemoryStore is a volatile Store implementation keeping all records in
// process-local maps. It is safe for concurrent access and best suited for
// tests or single-run workflows. Returned records are copies so callers
// cannot mutate internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	agentStates   map[string]*core.AgentState
	conversations map[string]*Conversation
	checkpoints   map[string]*Checkpoint
}

// NewInMemoryStore constructs an empty in-memory state store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agentStates:   make(map[string]*core.AgentState),
		conversations: make(map[string]*Conversation),
		checkpoints:   make(map[string]*Checkpoint),
	}
}

// GetAgentState returns a copy of the stored agent state.
func (s *InMemoryStore) GetAgentState(agentID string) (*core.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.agentStates[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := core.NewAgentState(st.AgentID)
	clone.Update(st.Snapshot())
	clone.Updated = st.Updated
	return clone, nil
}

// SaveAgentState stores a snapshot of the agent state.
func (s *InMemoryStore) SaveAgentState(st *core.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := core.NewAgentState(st.AgentID)
	clone.Update(st.Snapshot())
	clone.Updated = st.Updated
	s.agentStates[st.AgentID] = clone
	return nil
}

// DeleteAgentState removes the agent state record.
func (s *InMemoryStore) DeleteAgentState(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agentStates[agentID]; !ok {
		return ErrNotFound
	}
	delete(s.agentStates, agentID)
	return nil
}

// GetConversation returns a copy of the conversation.
func (s *InMemoryStore) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

// SaveConversation stores a snapshot of the conversation.
func (s *InMemoryStore) SaveConversation(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

// DeleteConversation removes the conversation record.
func (s *InMemoryStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// GetCheckpoint returns a copy of the checkpoint.
func (s *InMemoryStore) GetCheckpoint(id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCheckpoint(cp), nil
}

// SaveCheckpoint stores a snapshot of the checkpoint.
func (s *InMemoryStore) SaveCheckpoint(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ID] = cloneCheckpoint(cp)
	return nil
}

// DeleteCheckpoint removes the checkpoint record.
func (s *InMemoryStore) DeleteCheckpoint(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[id]; !ok {
		return ErrNotFound
	}
	delete(s.checkpoints, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func cloneConversation(conv *Conversation) *Conversation {
	clone := &Conversation{ID: conv.ID, AgentID: conv.AgentID, Updated: conv.Updated, Turns: make([]ConversationTurn, len(conv.Turns))}
	copy(clone.Turns, conv.Turns)
	return clone
}

func cloneCheckpoint(cp *Checkpoint) *Checkpoint {
	clone := &Checkpoint{ID: cp.ID, WorkflowID: cp.WorkflowID, Created: cp.Created, TaskStatus: make(map[string]core.TaskStatus, len(cp.TaskStatus)), Data: make(map[string]any, len(cp.Data))}
	for k, v := range cp.TaskStatus {
		clone.TaskStatus[k] = v
	}
	for k, v := range cp.Data {
		clone.Data[k] = v
	}
	return clone
}
