package models

import "time"

// StepStatus represents the current state of a step.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step's agent is running.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates the step failed.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates the step's condition was false.
	StepStatusSkipped StepStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true for completed, failed and skipped.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// WorkflowStatus is the aggregate outcome of an execution.
type WorkflowStatus string

const (
	// WorkflowStatusCompleted means no step failed.
	WorkflowStatusCompleted WorkflowStatus = "completed"
	// WorkflowStatusPartial means some steps completed and some failed.
	WorkflowStatusPartial WorkflowStatus = "partial"
	// WorkflowStatusFailed means no step completed and at least one failed,
	// or the workflow could not be dispatched at all.
	WorkflowStatusFailed WorkflowStatus = "failed"
	// WorkflowStatusCancelled means scheduling stopped on cancellation or
	// time budget expiry.
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// StepResult is the terminal record of one step.
type StepResult struct {
	StepID    string         `json:"stepId"`
	Status    StepStatus     `json:"status"`
	Output    string         `json:"output"`
	Variables map[string]any `json:"variables,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	AgentName string         `json:"agentName,omitempty"`
	// Attempts is the number of agent runs made, including retries.
	Attempts int `json:"attempts,omitempty"`
}

// WorkflowResult is the aggregate outcome of one execution.
type WorkflowResult struct {
	RunID        string         `json:"runId"`
	WorkflowName string         `json:"workflowName"`
	Status       WorkflowStatus `json:"status"`
	StepResults  []StepResult   `json:"stepResults"`
	Variables    map[string]any `json:"variables"`
	StartTime    time.Time      `json:"startTime"`
	EndTime      time.Time      `json:"endTime"`
	Duration     time.Duration  `json:"duration"`
	Error        string         `json:"error,omitempty"`
}

// Counts returns the number of completed, failed and skipped steps.
func (r *WorkflowResult) Counts() (completed, failed, skipped int) {
	for _, s := range r.StepResults {
		switch s.Status {
		case StepStatusCompleted:
			completed++
		case StepStatusFailed:
			failed++
		case StepStatusSkipped:
			skipped++
		}
	}
	return completed, failed, skipped
}

// StepResult returns the result for the given step id, or nil.
func (r *WorkflowResult) StepResult(id string) *StepResult {
	for i := range r.StepResults {
		if r.StepResults[i].StepID == id {
			return &r.StepResults[i]
		}
	}
	return nil
}
