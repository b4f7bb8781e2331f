package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsensus_Majority(t *testing.T) {
	c := NewConsensus(ConsensusMajority)
	votes := []Vote{
		{AgentID: "a1", Decision: "approve"},
		{AgentID: "a2", Decision: "approve"},
		{AgentID: "a3", Decision: "approve"},
		{AgentID: "a4", Decision: "reject"},
		{AgentID: "a5", Decision: "reject"},
	}

	result, err := c.Decide("merge release", votes)
	require.NoError(t, err)
	assert.True(t, result.Achieved)
	assert.Equal(t, "approve", result.Decision)
	assert.InDelta(t, 60.0, result.Percentage, 1e-9)
}

func TestConsensus_MajorityTieBreaksFirstSubmitted(t *testing.T) {
	c := NewConsensus(ConsensusMajority)
	votes := []Vote{
		{AgentID: "a1", Decision: "blue"},
		{AgentID: "a2", Decision: "green"},
		{AgentID: "a3", Decision: "green"},
		{AgentID: "a4", Decision: "blue"},
	}

	result, err := c.Decide("color", votes)
	require.NoError(t, err)
	assert.Equal(t, "blue", result.Decision)
	assert.InDelta(t, 50.0, result.Percentage, 1e-9)
}

func TestConsensus_Unanimous(t *testing.T) {
	c := NewConsensus(ConsensusUnanimous)

	result, err := c.Decide("topic", []Vote{
		{AgentID: "a1", Decision: "yes"},
		{AgentID: "a2", Decision: "yes"},
	})
	require.NoError(t, err)
	assert.True(t, result.Achieved)
	assert.InDelta(t, 100.0, result.Percentage, 1e-9)

	result, err = c.Decide("topic", []Vote{
		{AgentID: "a1", Decision: "yes"},
		{AgentID: "a2", Decision: "no"},
	})
	require.NoError(t, err)
	assert.False(t, result.Achieved)
	// The failed result names both camps.
	assert.Equal(t, []string{"yes", "no"}, result.Decisions)
	assert.NotEmpty(t, result.Reason)
}

func TestConsensus_Weighted(t *testing.T) {
	c := NewConsensus(ConsensusWeighted)
	votes := []Vote{
		{AgentID: "a1", Decision: "a", Confidence: 0.9, Weight: 2}, // 1.8
		{AgentID: "a2", Decision: "b", Confidence: 0.8},            // weight defaults to 1 -> 0.8
		{AgentID: "a3", Decision: "b", Confidence: 0.5},            // 0.5
	}

	result, err := c.Decide("topic", votes)
	require.NoError(t, err)
	assert.Equal(t, "a", result.Decision)
	assert.InDelta(t, 1.8/3.1*100.0, result.Percentage, 1e-9)
}

func TestConsensus_Leader(t *testing.T) {
	c := NewConsensus(ConsensusLeader, func(o *ConsensusOptions) { o.Leader = "a2" })
	votes := []Vote{
		{AgentID: "a1", Decision: "reject"},
		{AgentID: "a2", Decision: "approve"},
	}

	result, err := c.Decide("topic", votes)
	require.NoError(t, err)
	assert.True(t, result.Achieved)
	assert.Equal(t, "approve", result.Decision)
}

func TestConsensus_LeaderAbsent(t *testing.T) {
	c := NewConsensus(ConsensusLeader, func(o *ConsensusOptions) { o.Leader = "boss" })

	result, err := c.Decide("topic", []Vote{{AgentID: "a1", Decision: "x"}})
	require.NoError(t, err)
	assert.False(t, result.Achieved)
	assert.Contains(t, result.Reason, "boss")
}

func TestConsensus_Validate(t *testing.T) {
	c := NewConsensus(ConsensusMajority)

	_, err := c.Decide("", []Vote{{AgentID: "a1", Decision: "x"}})
	assert.Error(t, err)

	_, err = c.Decide("topic", nil)
	assert.Error(t, err)

	leaderless := NewConsensus(ConsensusLeader)
	_, err = leaderless.Decide("topic", []Vote{{AgentID: "a1", Decision: "x"}})
	assert.Error(t, err)
}
