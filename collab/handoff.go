package collab

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// HandoffStrategy selects how ownership of a task moves between agents.
type HandoffStrategy string

const (
	// HandoffImmediate transfers ownership synchronously.
	HandoffImmediate HandoffStrategy = "immediate"
	// HandoffQueued parks the transfer in a pending map for the target to claim.
	HandoffQueued HandoffStrategy = "queued"
	// HandoffConditional transfers only when every condition key matches the
	// task's current state snapshot.
	HandoffConditional HandoffStrategy = "conditional"
	// HandoffGradual parks the transfer with an overlap-period hint during
	// which both agents stay involved.
	HandoffGradual HandoffStrategy = "gradual"
)

// HandoffStatus is the outcome of one handoff execution.
type HandoffStatus string

const (
	// HandoffCompleted means ownership transferred.
	HandoffCompleted HandoffStatus = "completed"
	// HandoffPending means the transfer awaits a claim by the target.
	HandoffPending HandoffStatus = "pending"
	// HandoffSkipped means the condition did not hold.
	HandoffSkipped HandoffStatus = "skipped"
)

// HandoffRequest carries everything a handoff needs: the task, both agents,
// and per-strategy extras (condition map, state snapshot, overlap hint).
type HandoffRequest struct {
	Task      *core.Task     `json:"task"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Condition map[string]any `json:"condition,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Overlap   time.Duration  `json:"overlap,omitempty"`
}

// HandoffResult reports the outcome. PendingID is set for queued and gradual
// transfers so the target can claim them later.
type HandoffResult struct {
	Status    HandoffStatus `json:"status"`
	PendingID string        `json:"pending_id,omitempty"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Overlap   time.Duration `json:"overlap,omitempty"`
}

// Handoff implements the task-transfer protocol for one strategy. The
// pending map is the only mutable state and is mutex guarded.
type Handoff struct {
	strategy HandoffStrategy

	mu      sync.Mutex
	pending map[string]HandoffRequest
}

// NewHandoff constructs the protocol for the given strategy.
func NewHandoff(strategy HandoffStrategy) *Handoff {
	return &Handoff{strategy: strategy, pending: make(map[string]HandoffRequest)}
}

// Validate rejects execution up-front when required fields are missing.
func (h *Handoff) Validate(req HandoffRequest) error {
	if req.Task == nil {
		return errors.New("collab: handoff requires a task")
	}
	if req.From == "" {
		return errors.New("collab: handoff requires a source agent")
	}
	if req.To == "" {
		return errors.New("collab: handoff requires a target agent")
	}
	if h.strategy == HandoffConditional && len(req.Condition) == 0 {
		return errors.New("collab: conditional handoff requires a condition")
	}
	return nil
}

// Execute runs the strategy. Immediate returns success synchronously; queued
// and gradual park the request and return a pending id; conditional executes
// immediately only if every condition key/value matches the state snapshot.
func (h *Handoff) Execute(req HandoffRequest) (*HandoffResult, error) {
	if err := h.Validate(req); err != nil {
		return nil, err
	}

	switch h.strategy {
	case HandoffImmediate:
		return h.transfer(req), nil

	case HandoffQueued:
		return h.park(req), nil

	case HandoffConditional:
		for key, want := range req.Condition {
			got, ok := req.State[key]
			if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
				return &HandoffResult{Status: HandoffSkipped, From: req.From, To: req.To}, nil
			}
		}
		return h.transfer(req), nil

	case HandoffGradual:
		res := h.park(req)
		res.Overlap = req.Overlap
		return res, nil

	default:
		return nil, fmt.Errorf("collab: unknown handoff strategy %q", h.strategy)
	}
}

func (h *Handoff) transfer(req HandoffRequest) *HandoffResult {
	req.Task.AgentType = req.To
	return &HandoffResult{Status: HandoffCompleted, From: req.From, To: req.To}
}

func (h *Handoff) park(req HandoffRequest) *HandoffResult {
	id := core.NewID()
	h.mu.Lock()
	h.pending[id] = req
	h.mu.Unlock()
	return &HandoffResult{Status: HandoffPending, PendingID: id, From: req.From, To: req.To}
}

// Claim pops a pending transfer, completing it for the target agent.
func (h *Handoff) Claim(pendingID string) (*HandoffResult, error) {
	h.mu.Lock()
	req, ok := h.pending[pendingID]
	if ok {
		delete(h.pending, pendingID)
	}
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("collab: no pending handoff %q", pendingID)
	}
	return h.transfer(req), nil
}

// Pending lists the ids of parked transfers.
func (h *Handoff) Pending() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.pending))
	for id := range h.pending {
		ids = append(ids, id)
	}
	return ids
}
