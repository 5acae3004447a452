package domain

import "time"

// WorkerState is the lifecycle state of a single agent runtime.
type WorkerState string

const (
	StateIdle     WorkerState = "idle"
	StateRunning  WorkerState = "running"
	StateErrored  WorkerState = "error"
	StateDisabled WorkerState = "disabled"
)

// WorkerStatus is the read-only view of an agent runtime.
type WorkerStatus struct {
	Name              string        `json:"name"`
	State             WorkerState   `json:"status"`
	Enabled           bool          `json:"enabled"`
	ExecutionInterval time.Duration `json:"execution_interval"`
	Schedule          string        `json:"schedule,omitempty"`
}

// WorkerMetrics are monotonic counters maintained by the runtime after every cycle.
type WorkerMetrics struct {
	Executions              int64         `json:"executions"`
	Successes               int64         `json:"successes"`
	Failures                int64         `json:"failures"`
	AvgExecutionTime        time.Duration `json:"avg_execution_time"`
	LastExecutionAt         *time.Time    `json:"last_execution_at,omitempty"`
	LastError               string        `json:"last_error,omitempty"`
	TotalRecommendations    int64         `json:"total_recommendations"`
	AcceptedRecommendations int64         `json:"accepted_recommendations"`
}

// SuccessRate is successes over executions, 0 before the first cycle.
func (m WorkerMetrics) SuccessRate() float64 {
	return float64(m.Successes) / float64(max(m.Executions, 1))
}

// AcceptanceRate is accepted over emitted recommendations.
func (m WorkerMetrics) AcceptanceRate() float64 {
	return float64(m.AcceptedRecommendations) / float64(max(m.TotalRecommendations, 1))
}

// AgentView is the per-agent entry of the status surface.
type AgentView struct {
	Name           string        `json:"name"`
	Status         WorkerState   `json:"status"`
	Enabled        bool          `json:"enabled"`
	Metrics        WorkerMetrics `json:"metrics"`
	SuccessRate    float64       `json:"success_rate"`
	AcceptanceRate float64       `json:"acceptance_rate"`
}

// SystemStatus aggregates every agent for the status surface.
type SystemStatus struct {
	Timestamp    time.Time            `json:"timestamp"`
	Agents       map[string]AgentView `json:"agents"`
	ActiveAgents int                  `json:"active_agents"`
	TotalAgents  int                  `json:"total_agents"`
	Pending      int                  `json:"pending_recommendations"`
}
