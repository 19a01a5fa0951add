// Package orchestrator validates workflow definitions and executes them,
// dispatching steps to agents per execution mode.
package orchestrator

import (
	"time"

	"github.com/foragen/foragen-cli/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventWorkflowStart indicates a workflow has begun executing.
	EventWorkflowStart EventType = "workflow_start"
	// EventWorkflowEnd indicates a workflow has finished.
	EventWorkflowEnd EventType = "workflow_end"
	// EventStepStart indicates a step's agent is about to run.
	EventStepStart EventType = "step_start"
	// EventStepEnd indicates a step reached a terminal state.
	EventStepEnd EventType = "step_end"
	// EventStepSkip indicates a step was skipped because its condition was false.
	EventStepSkip EventType = "step_skip"
	// EventVariableUpdate indicates a step wrote a workflow variable.
	EventVariableUpdate EventType = "variable_update"
)

// Event is delivered to listeners for every lifecycle transition.
// Only the fields relevant to Type are set.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the execution.
	RunID string
	// Workflow is the workflow name.
	Workflow string
	// Timestamp is when the event occurred.
	Timestamp time.Time

	// TotalSteps and Mode are set on workflow_start.
	TotalSteps int
	Mode       models.ExecutionMode

	// Status is set on workflow_end (workflow status) and step_end.
	Status     models.WorkflowStatus
	StepStatus models.StepStatus
	// Duration is set on workflow_end and step_end.
	Duration time.Duration
	// SuccessCount and FailureCount are set on workflow_end.
	SuccessCount int
	FailureCount int

	// StepID is set on step and variable events.
	StepID string
	// StepName is the step's display name, set on step_start and step_end.
	StepName string
	// AgentName is set on step_start and step_end.
	AgentName string
	// Reason is set on step_skip.
	Reason string
	// Error carries the step error message on a failed step_end.
	Error string

	// Variable and Value are set on variable_update.
	Variable string
	Value    any
}

// Listener receives orchestrator events.
type Listener func(Event)
