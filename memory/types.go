package memory

import "time"

// MemoryType classifies an experience record.
type MemoryType string

const (
	// Episodic records what happened during a specific task.
	Episodic MemoryType = "episodic"
	// Semantic records facts and learned knowledge.
	Semantic MemoryType = "semantic"
	// Procedural records how to perform a kind of task.
	Procedural MemoryType = "procedural"
	// Error records a failure and its circumstances.
	Error MemoryType = "error"
	// Success records a successful outcome worth repeating.
	Success MemoryType = "success"
)

// Entry is one experience record. Entries are immutable after creation;
// deletion is bulk only, filtered by type and age. Relevance is populated
// only on retrieval, never on storage.
type Entry struct {
	ID        string         `json:"id"`
	Type      MemoryType     `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Relevance float64        `json:"relevance,omitempty"`
}

// KnowledgePattern is a derived aggregate over entries sharing a
// metadata-derived key. Patterns are rebuilt wholesale by consolidation,
// never mutated incrementally.
type KnowledgePattern struct {
	Key         string    `json:"key"`
	Frequency   int       `json:"frequency"`
	EntryIDs    []string  `json:"entry_ids"`
	SuccessRate float64   `json:"success_rate"`
	LastSeen    time.Time `json:"last_seen"`
}
