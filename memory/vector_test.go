package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryVectorStore_QueryOrdering(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx,
		[]string{"exact", "close", "far"},
		[]string{"retry failed request", "retry failed request with backoff", "weather is sunny"},
		[]map[string]any{{}, {}, {}},
	))

	matches, err := store.Query(ctx, "retry failed request", 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
}

func TestInMemoryVectorStore_FilterAndDelete(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx,
		[]string{"a", "b"},
		[]string{"doc a", "doc b"},
		[]map[string]any{{"type": "error"}, {"type": "success"}},
	))

	matches, err := store.Get(ctx, map[string]any{"type": "error"}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)

	require.NoError(t, store.Delete(ctx, []string{"a", "missing"}))
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryVectorStore_AddLengthMismatch(t *testing.T) {
	store := NewInMemoryVectorStore()
	err := store.Add(context.Background(), []string{"a"}, []string{"doc", "extra"}, []map[string]any{{}})
	assert.Error(t, err)
}
