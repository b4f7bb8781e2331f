package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hupe1980/taskmesh/logging"
)

// ErrNotInitialized is returned when the cognitive memory is used without a
// backing vector store.
var ErrNotInitialized = errors.New("memory: vector store not initialized")

// DefaultMinRelevance is the retrieval threshold applied when a query does
// not specify one.
const DefaultMinRelevance = 0.7

// consolidationLimit bounds how many entries one consolidation pass scans.
const consolidationLimit = 1000

// CognitiveMemory is a semantic store of experience records with similarity
// search and periodic pattern consolidation. The external vector store is the
// sole source of truth; the in-process pattern cache is a point-in-time
// snapshot replaced wholesale by ConsolidateKnowledge, never updated by
// individual writes.
type CognitiveMemory struct {
	store    VectorStore
	logger   logging.Logger
	patterns atomic.Pointer[[]KnowledgePattern]
}

// Options configures a CognitiveMemory.
type Options struct {
	Logger logging.Logger
}

// New constructs a cognitive memory over the given vector store.
func New(store VectorStore, optFns ...func(o *Options)) *CognitiveMemory {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	m := &CognitiveMemory{store: store, logger: opts.Logger}
	empty := []KnowledgePattern{}
	m.patterns.Store(&empty)
	return m
}

// StoreOptions carries the optional attribution fields of a new entry.
type StoreOptions struct {
	AgentID  string
	TaskID   string
	Metadata map[string]any
}

// StoreMemory writes a new entry and returns its assigned id. Ids follow the
// scheme type_timestamp_contenthash so collisions require the same content in
// the same second.
func (m *CognitiveMemory) StoreMemory(ctx context.Context, mtype MemoryType, content string, optFns ...func(o *StoreOptions)) (string, error) {
	if m.store == nil {
		return "", ErrNotInitialized
	}
	opts := StoreOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	now := time.Now().UTC()
	id := fmt.Sprintf("%s_%d_%s", mtype, now.Unix(), contentHash(content))

	metadata := map[string]any{
		"type":      string(mtype),
		"timestamp": now.Format(time.RFC3339Nano),
	}
	if opts.AgentID != "" {
		metadata["agent_id"] = opts.AgentID
	}
	if opts.TaskID != "" {
		metadata["task_id"] = opts.TaskID
	}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	if err := m.store.Add(ctx, []string{id}, []string{content}, []map[string]any{metadata}); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	m.logger.Debug("memory stored", "id", id, "type", string(mtype))
	return id, nil
}

// QueryOptions tunes a similarity search.
type QueryOptions struct {
	TopK         int
	MinRelevance float64
	Types        []MemoryType
	AgentID      string
}

// QueryResult bundles the retained entries with ad-hoc co-occurrence
// patterns: any metadata key/value pair appearing at least twice among the
// retained entries.
type QueryResult struct {
	Entries  []Entry
	Patterns map[string]int
}

// QueryMemory performs similarity search, converts each distance d into
// relevance 1 - min(d, 1) and discards results below the minimum relevance.
// Relevance is therefore monotonically decreasing in the underlying distance.
func (m *CognitiveMemory) QueryMemory(ctx context.Context, query string, optFns ...func(o *QueryOptions)) (*QueryResult, error) {
	if m.store == nil {
		return nil, ErrNotInitialized
	}
	opts := QueryOptions{TopK: 5, MinRelevance: DefaultMinRelevance}
	for _, fn := range optFns {
		fn(&opts)
	}

	filter := map[string]any{}
	if opts.AgentID != "" {
		filter["agent_id"] = opts.AgentID
	}
	if len(opts.Types) == 1 {
		filter["type"] = string(opts.Types[0])
	}

	// Over-fetch when type filtering happens client side.
	k := opts.TopK
	if len(opts.Types) > 1 {
		k *= len(opts.Types)
	}
	matches, err := m.store.Query(ctx, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	wanted := map[MemoryType]struct{}{}
	for _, t := range opts.Types {
		wanted[t] = struct{}{}
	}

	result := &QueryResult{Patterns: map[string]int{}}
	for _, match := range matches {
		entry := entryFromMatch(match)
		if len(wanted) > 0 {
			if _, ok := wanted[entry.Type]; !ok {
				continue
			}
		}
		entry.Relevance = 1.0 - min(match.Distance, 1.0)
		if entry.Relevance < opts.MinRelevance {
			continue
		}
		result.Entries = append(result.Entries, entry)
		if len(result.Entries) >= opts.TopK {
			break
		}
	}

	for key, count := range coOccurrences(result.Entries) {
		if count >= 2 {
			result.Patterns[key] = count
		}
	}
	return result, nil
}

// ConsolidateOptions tunes a consolidation pass.
type ConsolidateOptions struct {
	// Window restricts consolidation to entries newer than now-Window.
	// Zero means no time restriction.
	Window time.Duration
	// MinFrequency drops groups with fewer members. Defaults to 2.
	MinFrequency int
}

// ConsolidateKnowledge scans stored entries, groups them by a
// priority-ordered pattern key (error > solution > problem > type > generic)
// and rebuilds the pattern cache from the groups meeting the minimum
// frequency. Each group's success rate is the fraction of members typed
// Success. The returned slice is sorted by descending frequency.
func (m *CognitiveMemory) ConsolidateKnowledge(ctx context.Context, optFns ...func(o *ConsolidateOptions)) ([]KnowledgePattern, error) {
	if m.store == nil {
		return nil, ErrNotInitialized
	}
	opts := ConsolidateOptions{MinFrequency: 2}
	for _, fn := range optFns {
		fn(&opts)
	}

	matches, err := m.store.Get(ctx, nil, consolidationLimit)
	if err != nil {
		return nil, fmt.Errorf("consolidate knowledge: %w", err)
	}

	var cutoff time.Time
	if opts.Window > 0 {
		cutoff = time.Now().UTC().Add(-opts.Window)
	}

	groups := map[string][]Entry{}
	for _, match := range matches {
		entry := entryFromMatch(match)
		if !cutoff.IsZero() && entry.Timestamp.Before(cutoff) {
			continue
		}
		key := patternKey(entry)
		groups[key] = append(groups[key], entry)
	}

	patterns := make([]KnowledgePattern, 0, len(groups))
	for key, members := range groups {
		if len(members) < opts.MinFrequency {
			continue
		}
		successes := 0
		var lastSeen time.Time
		ids := make([]string, 0, len(members))
		for _, e := range members {
			ids = append(ids, e.ID)
			if e.Type == Success {
				successes++
			}
			if e.Timestamp.After(lastSeen) {
				lastSeen = e.Timestamp
			}
		}
		sort.Strings(ids)
		patterns = append(patterns, KnowledgePattern{
			Key:         key,
			Frequency:   len(members),
			EntryIDs:    ids,
			SuccessRate: float64(successes) / float64(len(members)),
			LastSeen:    lastSeen,
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Frequency != patterns[j].Frequency {
			return patterns[i].Frequency > patterns[j].Frequency
		}
		return patterns[i].Key < patterns[j].Key
	})

	m.patterns.Store(&patterns)
	m.logger.Info("knowledge consolidated", "patterns", len(patterns), "entries_scanned", len(matches))
	return patterns, nil
}

// Patterns returns the cached snapshot from the last consolidation.
func (m *CognitiveMemory) Patterns() []KnowledgePattern {
	return *m.patterns.Load()
}

// ClearOptions filters a bulk delete.
type ClearOptions struct {
	// Type restricts deletion to one memory type. Empty clears all types.
	Type MemoryType
	// OlderThan restricts deletion to entries older than now-OlderThan.
	// Zero deletes regardless of age.
	OlderThan time.Duration
}

// ClearMemories bulk-deletes entries matching the filter and returns the
// number removed.
func (m *CognitiveMemory) ClearMemories(ctx context.Context, optFns ...func(o *ClearOptions)) (int, error) {
	if m.store == nil {
		return 0, ErrNotInitialized
	}
	opts := ClearOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	filter := map[string]any{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	matches, err := m.store.Get(ctx, filter, 0)
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}

	var cutoff time.Time
	if opts.OlderThan > 0 {
		cutoff = time.Now().UTC().Add(-opts.OlderThan)
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		entry := entryFromMatch(match)
		if !cutoff.IsZero() && !entry.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, match.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := m.store.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	m.logger.Info("memories cleared", "count", len(ids))
	return len(ids), nil
}

// patternKey selects the group key for consolidation. Specific failure and
// solution markers outrank the generic entry type.
func patternKey(e Entry) string {
	for _, field := range []string{"error", "solution", "problem"} {
		if v, ok := e.Metadata[field]; ok {
			return fmt.Sprintf("%s:%v", field, v)
		}
	}
	if e.Type != "" {
		return fmt.Sprintf("type:%s", e.Type)
	}
	return "generic"
}

// coOccurrences counts metadata key/value pairs across entries, skipping the
// bookkeeping fields every entry carries.
func coOccurrences(entries []Entry) map[string]int {
	counts := map[string]int{}
	for _, e := range entries {
		for k, v := range e.Metadata {
			switch k {
			case "timestamp", "task_id":
				continue
			}
			counts[fmt.Sprintf("%s=%v", k, v)]++
		}
	}
	return counts
}

func entryFromMatch(match Match) Entry {
	entry := Entry{
		ID:       match.ID,
		Content:  match.Document,
		Metadata: match.Metadata,
	}
	if v, ok := match.Metadata["type"].(string); ok {
		entry.Type = MemoryType(v)
	}
	if v, ok := match.Metadata["agent_id"].(string); ok {
		entry.AgentID = v
	}
	if v, ok := match.Metadata["task_id"].(string); ok {
		entry.TaskID = v
	}
	if v, ok := match.Metadata["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			entry.Timestamp = ts
		}
	}
	return entry
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:8]
}
