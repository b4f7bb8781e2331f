// Package orchestrator coordinates task execution across registered agents.
// It owns the agent registry, routes tasks by agent type and runs workflows
// under one of four scheduling strategies: sequential, parallel, priority
// and dependency-aware wavefront scheduling with deadlock detection.
package orchestrator
