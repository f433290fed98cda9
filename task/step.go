// ABOUTME: StepRecord is the immutable per-step execution record appended to a
// ABOUTME: task's history; field names match the task_progress wire payload.
package task

import "time"

// StepStatus is the outcome tag for one pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepRecord captures one observed pipeline step. Records are append-only:
// a task's step history is the ordered sequence observed during its run.
type StepRecord struct {
	AgentName     string     `json:"agent_name"`
	Status        StepStatus `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	OutputSummary string     `json:"output_summary,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// RunningStep builds a StepRecord for a step that has just started.
func RunningStep(name string, started time.Time) StepRecord {
	return StepRecord{
		AgentName: name,
		Status:    StepRunning,
		StartedAt: &started,
	}
}

// CompletedStep builds a StepRecord for a step that committed its output.
func CompletedStep(name, summary string, started, completed time.Time) StepRecord {
	return StepRecord{
		AgentName:     name,
		Status:        StepCompleted,
		StartedAt:     &started,
		CompletedAt:   &completed,
		OutputSummary: summary,
	}
}

// FailedStep builds a StepRecord for a step whose retries were exhausted.
func FailedStep(name, errMsg string, started, completed time.Time) StepRecord {
	return StepRecord{
		AgentName:    name,
		Status:       StepFailed,
		StartedAt:    &started,
		CompletedAt:  &completed,
		ErrorMessage: errMsg,
	}
}
