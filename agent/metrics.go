package agent

import "time"

// Metrics is a rolling snapshot of an agent's execution history. The average
// execution time is an incremental mean so no per-task history is retained.
type Metrics struct {
	TasksExecuted  int           `json:"tasks_executed"`
	TasksSucceeded int           `json:"tasks_succeeded"`
	TasksFailed    int           `json:"tasks_failed"`
	AvgExecution   time.Duration `json:"avg_execution"`
	TokensUsed     int           `json:"tokens_used"`
	Cost           float64       `json:"cost"`
	LastActive     time.Time     `json:"last_active,omitzero"`
}

// Health describes an agent for status reporting.
type Health struct {
	AgentID      string   `json:"agent_id"`
	AgentType    string   `json:"agent_type"`
	Capabilities []string `json:"capabilities,omitempty"`
	Metrics      Metrics  `json:"metrics"`
}
