// Package agent defines the execution contract specialized workers implement
// and the Runner that wraps Execute with the fixed lifecycle: routing checks,
// status transitions, retry accounting, rolling metrics and optional
// cognitive memory hooks.
package agent
