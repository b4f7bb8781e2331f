// Package state provides keyed storage for agent state, multi-turn
// conversation state and resumable workflow checkpoints. The Store interface
// is deliberately narrow (get/save/delete by id) so the default in-memory
// implementation can be swapped for the durable SQLite one without touching
// the orchestrator.
package state
