package collab

import (
	"errors"
	"fmt"
)

// ConsensusStrategy selects the voting procedure.
type ConsensusStrategy string

const (
	// ConsensusMajority lets the plurality win; ties break toward the
	// first-submitted decision so outcomes are deterministic.
	ConsensusMajority ConsensusStrategy = "majority"
	// ConsensusUnanimous succeeds only when every vote agrees.
	ConsensusUnanimous ConsensusStrategy = "unanimous"
	// ConsensusWeighted scores each decision by confidence times weight.
	ConsensusWeighted ConsensusStrategy = "weighted"
	// ConsensusLeader makes the leader's own vote authoritative.
	ConsensusLeader ConsensusStrategy = "leader"
)

// Vote is one agent's proposal. Weight defaults to 1 when unset; Confidence
// expresses how sure the agent is in [0, 1].
type Vote struct {
	AgentID    string  `json:"agent_id"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence,omitempty"`
	Weight     float64 `json:"weight,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// ConsensusResult reports the voting outcome. Decisions lists every distinct
// decision seen, in first-submitted order, so failed unanimity names the
// disagreement.
type ConsensusResult struct {
	Achieved   bool     `json:"achieved"`
	Decision   string   `json:"decision,omitempty"`
	Percentage float64  `json:"percentage,omitempty"`
	Decisions  []string `json:"decisions,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Consensus implements the multi-agent voting protocol for one strategy.
type Consensus struct {
	strategy ConsensusStrategy
	leader   string
}

// ConsensusOptions configures a Consensus protocol.
type ConsensusOptions struct {
	// Leader names the authoritative voter for the leader strategy.
	Leader string
}

// NewConsensus constructs the protocol for the given strategy.
func NewConsensus(strategy ConsensusStrategy, optFns ...func(o *ConsensusOptions)) *Consensus {
	opts := ConsensusOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Consensus{strategy: strategy, leader: opts.Leader}
}

// Validate rejects execution up-front when the required context is missing.
func (c *Consensus) Validate(topic string, votes []Vote) error {
	if topic == "" {
		return errors.New("collab: consensus requires a topic")
	}
	if len(votes) == 0 {
		return errors.New("collab: consensus requires at least one vote")
	}
	if c.strategy == ConsensusLeader && c.leader == "" {
		return errors.New("collab: leader consensus requires a leader")
	}
	return nil
}

// Decide runs the strategy over the submitted votes.
func (c *Consensus) Decide(topic string, votes []Vote) (*ConsensusResult, error) {
	if err := c.Validate(topic, votes); err != nil {
		return nil, err
	}

	switch c.strategy {
	case ConsensusMajority:
		return c.majority(votes), nil
	case ConsensusUnanimous:
		return c.unanimous(votes), nil
	case ConsensusWeighted:
		return c.weighted(votes), nil
	case ConsensusLeader:
		return c.leaderVote(votes), nil
	default:
		return nil, fmt.Errorf("collab: unknown consensus strategy %q", c.strategy)
	}
}

// distinctDecisions returns every decision in first-submitted order.
func distinctDecisions(votes []Vote) []string {
	seen := map[string]struct{}{}
	var order []string
	for _, v := range votes {
		if _, ok := seen[v.Decision]; !ok {
			seen[v.Decision] = struct{}{}
			order = append(order, v.Decision)
		}
	}
	return order
}

func (c *Consensus) majority(votes []Vote) *ConsensusResult {
	counts := map[string]int{}
	for _, v := range votes {
		counts[v.Decision]++
	}
	best := ""
	bestCount := -1
	// Walking first-submitted order makes the tie-break deterministic.
	for _, decision := range distinctDecisions(votes) {
		if counts[decision] > bestCount {
			best = decision
			bestCount = counts[decision]
		}
	}
	return &ConsensusResult{
		Achieved:   true,
		Decision:   best,
		Percentage: float64(bestCount) / float64(len(votes)) * 100.0,
		Decisions:  distinctDecisions(votes),
	}
}

func (c *Consensus) unanimous(votes []Vote) *ConsensusResult {
	decisions := distinctDecisions(votes)
	if len(decisions) == 1 {
		return &ConsensusResult{Achieved: true, Decision: decisions[0], Percentage: 100.0, Decisions: decisions}
	}
	return &ConsensusResult{
		Achieved:  false,
		Decisions: decisions,
		Reason:    fmt.Sprintf("%d distinct decisions, unanimity required", len(decisions)),
	}
}

func (c *Consensus) weighted(votes []Vote) *ConsensusResult {
	scores := map[string]float64{}
	var total float64
	for _, v := range votes {
		weight := v.Weight
		if weight == 0 {
			weight = 1
		}
		score := v.Confidence * weight
		scores[v.Decision] += score
		total += score
	}
	best := ""
	bestScore := -1.0
	for _, decision := range distinctDecisions(votes) {
		if scores[decision] > bestScore {
			best = decision
			bestScore = scores[decision]
		}
	}
	pct := 0.0
	if total > 0 {
		pct = bestScore / total * 100.0
	}
	return &ConsensusResult{Achieved: true, Decision: best, Percentage: pct, Decisions: distinctDecisions(votes)}
}

func (c *Consensus) leaderVote(votes []Vote) *ConsensusResult {
	for _, v := range votes {
		if v.AgentID == c.leader {
			return &ConsensusResult{Achieved: true, Decision: v.Decision, Percentage: 100.0, Decisions: distinctDecisions(votes)}
		}
	}
	return &ConsensusResult{
		Achieved:  false,
		Decisions: distinctDecisions(votes),
		Reason:    fmt.Sprintf("leader %q did not vote", c.leader),
	}
}
