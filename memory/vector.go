package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Match is one vector store hit. Distance is the raw similarity distance in
// [0, +inf); smaller is closer.
type Match struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// VectorStore is the narrow interface the cognitive memory needs from an
// external vector database. Implementations back Query with embedding
// similarity; the in-memory implementation approximates it with token
// overlap for tests and demos.
type VectorStore interface {
	Add(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error
	Query(ctx context.Context, text string, k int, filter map[string]any) ([]Match, error)
	Get(ctx context.Context, filter map[string]any, limit int) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
}

// InMemoryVectorStore is a process-local VectorStore. Query scores documents
// by token overlap (distance = 1 - Jaccard similarity), which preserves the
// monotonicity contract (more overlap, smaller distance) without an
// embedding model. Suitable for tests; swap for a real vector database in
// production.
type InMemoryVectorStore struct {
	mu   sync.RWMutex
	docs map[string]storedDoc
}

type storedDoc struct {
	document string
	metadata map[string]any
}

// NewInMemoryVectorStore constructs an empty in-memory vector store.
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{docs: make(map[string]storedDoc)}
}

// Add stores documents under their ids. Slices must be equal length.
func (s *InMemoryVectorStore) Add(_ context.Context, ids []string, documents []string, metadatas []map[string]any) error {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("mismatched lengths: %d ids, %d documents, %d metadatas", len(ids), len(documents), len(metadatas))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		md := make(map[string]any, len(metadatas[i]))
		for k, v := range metadatas[i] {
			md[k] = v
		}
		s.docs[id] = storedDoc{document: documents[i], metadata: md}
	}
	return nil
}

// Query returns the k closest documents passing the metadata filter, ordered
// by ascending distance.
func (s *InMemoryVectorStore) Query(_ context.Context, text string, k int, filter map[string]any) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queryTokens := tokenize(text)
	matches := make([]Match, 0, len(s.docs))
	for id, doc := range s.docs {
		if !matchesFilter(doc.metadata, filter) {
			continue
		}
		matches = append(matches, Match{
			ID:       id,
			Document: doc.document,
			Metadata: cloneMetadata(doc.metadata),
			Distance: 1.0 - jaccard(queryTokens, tokenize(doc.document)),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Get returns up to limit documents passing the metadata filter, in
// unspecified order. Distance is not populated.
func (s *InMemoryVectorStore) Get(_ context.Context, filter map[string]any, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]Match, 0, len(s.docs))
	for id, doc := range s.docs {
		if !matchesFilter(doc.metadata, filter) {
			continue
		}
		matches = append(matches, Match{ID: id, Document: doc.document, Metadata: cloneMetadata(doc.metadata)})
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

// Delete removes documents by id. Unknown ids are ignored.
func (s *InMemoryVectorStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

// Len reports the number of stored documents.
func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func cloneMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	common := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			common++
		}
	}
	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}
