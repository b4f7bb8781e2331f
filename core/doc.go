// Package core defines the shared value types of the orchestration library:
// the task lifecycle state machine, workflow aggregation, agent configuration
// and state, and the error taxonomy. Higher layers (agent, orchestrator, llm,
// memory, collab) depend on core; core depends on nothing but the standard
// library and uuid.
package core
