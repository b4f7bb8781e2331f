// Package collab implements the collaboration protocols layered on top of
// the orchestrator: task handoff between agents, multi-agent consensus
// voting, and a lightweight Team pub/queue for inter-agent messaging. All
// state is process-local and ephemeral.
package collab
