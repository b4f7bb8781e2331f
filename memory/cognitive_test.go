package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) (*CognitiveMemory, *InMemoryVectorStore) {
	t.Helper()
	store := NewInMemoryVectorStore()
	return New(store), store
}

func TestStoreMemory_IDScheme(t *testing.T) {
	m, store := newTestMemory(t)

	id, err := m.StoreMemory(context.Background(), Episodic, "deployed service to staging")
	require.NoError(t, err)

	parts := strings.Split(id, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, string(Episodic), parts[0])
	assert.Len(t, parts[2], 8)
	assert.Equal(t, 1, store.Len())
}

func TestStoreMemory_Attribution(t *testing.T) {
	m, store := newTestMemory(t)

	id, err := m.StoreMemory(context.Background(), Success, "task finished", func(o *StoreOptions) {
		o.AgentID = "agent-1"
		o.TaskID = "task-1"
		o.Metadata = map[string]any{"task_type": "summarize"}
	})
	require.NoError(t, err)

	matches, err := store.Get(context.Background(), map[string]any{"agent_id": "agent-1"}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.Equal(t, "task-1", matches[0].Metadata["task_id"])
	assert.Equal(t, "summarize", matches[0].Metadata["task_type"])
}

func TestQueryMemory_RelevanceOrdering(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.StoreMemory(ctx, Episodic, "database connection timeout during deploy")
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Episodic, "database connection pool exhausted")
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Episodic, "frontend button misaligned")
	require.NoError(t, err)

	result, err := m.QueryMemory(ctx, "database connection timeout during deploy", func(o *QueryOptions) {
		o.MinRelevance = 0.1
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Entries)

	// Exact content match is most relevant and relevance decreases with
	// distance down the list.
	assert.Contains(t, result.Entries[0].Content, "timeout")
	assert.InDelta(t, 1.0, result.Entries[0].Relevance, 1e-9)
	for i := 1; i < len(result.Entries); i++ {
		assert.LessOrEqual(t, result.Entries[i].Relevance, result.Entries[i-1].Relevance)
	}
}

func TestQueryMemory_MinRelevanceCutoff(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.StoreMemory(ctx, Episodic, "completely unrelated gardening notes")
	require.NoError(t, err)

	result, err := m.QueryMemory(ctx, "kubernetes rollout strategy")
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestQueryMemory_TypeAndAgentFilter(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.StoreMemory(ctx, Success, "summarize report done", func(o *StoreOptions) { o.AgentID = "a1" })
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Error, "summarize report failed", func(o *StoreOptions) { o.AgentID = "a1" })
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Success, "summarize report done twice", func(o *StoreOptions) { o.AgentID = "a2" })
	require.NoError(t, err)

	result, err := m.QueryMemory(ctx, "summarize report", func(o *QueryOptions) {
		o.MinRelevance = 0.0
		o.Types = []MemoryType{Success}
		o.AgentID = "a1"
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, Success, result.Entries[0].Type)
	assert.Equal(t, "a1", result.Entries[0].AgentID)
}

func TestQueryMemory_CoOccurrencePatterns(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for _, content := range []string{
		"api call failed with rate limit on users endpoint",
		"api call failed with rate limit on orders endpoint",
		"api call failed with rate limit on search endpoint",
	} {
		_, err := m.StoreMemory(ctx, Error, content, func(o *StoreOptions) {
			o.Metadata = map[string]any{"error": "rate_limit"}
		})
		require.NoError(t, err)
	}

	result, err := m.QueryMemory(ctx, "api call failed with rate limit", func(o *QueryOptions) {
		o.MinRelevance = 0.0
		o.TopK = 10
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Patterns["error=rate_limit"], 2)

	// Singletons never surface as patterns.
	for key := range result.Patterns {
		assert.GreaterOrEqual(t, result.Patterns[key], 2, key)
	}
}

func TestConsolidateKnowledge(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for _, content := range []string{
		"db timeout while saving users",
		"db timeout while saving orders",
		"db timeout while saving events",
	} {
		_, err := m.StoreMemory(ctx, Error, content, func(o *StoreOptions) {
			o.Metadata = map[string]any{"error": "db_timeout"}
		})
		require.NoError(t, err)
	}
	_, err := m.StoreMemory(ctx, Success, "db save succeeded after retry", func(o *StoreOptions) {
		o.Metadata = map[string]any{"error": "db_timeout"}
	})
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Semantic, "unrelated lone fact")
	require.NoError(t, err)

	patterns, err := m.ConsolidateKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, "error:db_timeout", p.Key)
	assert.Equal(t, 4, p.Frequency)
	assert.Len(t, p.EntryIDs, 4)
	assert.InDelta(t, 0.25, p.SuccessRate, 1e-9)
	assert.False(t, p.LastSeen.IsZero())

	// The cache snapshot reflects the last pass.
	assert.Equal(t, patterns, m.Patterns())
}

func TestConsolidateKnowledge_TypeFallbackKey(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.StoreMemory(ctx, Procedural, "how to roll back a deploy")
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Procedural, "how to page the on-call")
	require.NoError(t, err)

	patterns, err := m.ConsolidateKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "type:procedural", patterns[0].Key)
	assert.Equal(t, 0.0, patterns[0].SuccessRate)
}

func TestConsolidateKnowledge_Window(t *testing.T) {
	m, store := newTestMemory(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Add(ctx,
		[]string{"old-1", "old-2"},
		[]string{"stale entry one", "stale entry two"},
		[]map[string]any{
			{"type": string(Episodic), "timestamp": old.Format(time.RFC3339Nano)},
			{"type": string(Episodic), "timestamp": old.Format(time.RFC3339Nano)},
		},
	))

	patterns, err := m.ConsolidateKnowledge(ctx, func(o *ConsolidateOptions) {
		o.Window = time.Hour
	})
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestClearMemories(t *testing.T) {
	m, store := newTestMemory(t)
	ctx := context.Background()

	_, err := m.StoreMemory(ctx, Error, "first failure")
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, Success, "a win")
	require.NoError(t, err)

	removed, err := m.ClearMemories(ctx, func(o *ClearOptions) { o.Type = Error })
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	removed, err = m.ClearMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())
}

func TestClearMemories_OlderThan(t *testing.T) {
	m, store := newTestMemory(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Add(ctx,
		[]string{"old-1"},
		[]string{"stale"},
		[]map[string]any{{"type": string(Episodic), "timestamp": old.Format(time.RFC3339Nano)}},
	))
	_, err := m.StoreMemory(ctx, Episodic, "fresh")
	require.NoError(t, err)

	removed, err := m.ClearMemories(ctx, func(o *ClearOptions) { o.OlderThan = time.Hour })
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestCognitiveMemory_NotInitialized(t *testing.T) {
	m := &CognitiveMemory{}

	_, err := m.StoreMemory(context.Background(), Episodic, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.QueryMemory(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.ConsolidateKnowledge(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.ClearMemories(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}
