// Package memory implements the cognitive memory subsystem: a semantic store
// of experience records (episodic, semantic, procedural, error, success) with
// similarity retrieval and batch pattern consolidation. The backing
// VectorStore is the sole source of truth; only a point-in-time pattern
// snapshot lives in process.
package memory
