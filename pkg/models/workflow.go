// Package models defines the data types shared by the workflow store, the
// orchestrator and the CLI.
package models

import "time"

// ExecutionMode selects how the orchestrator schedules a workflow's steps.
type ExecutionMode string

const (
	// ModeSequential runs steps one at a time in declared order.
	ModeSequential ExecutionMode = "sequential"
	// ModeParallel runs steps level by level, concurrently within a level.
	ModeParallel ExecutionMode = "parallel"
	// ModeConditional runs steps in declared order, gated by their conditions.
	ModeConditional ExecutionMode = "conditional"
)

// Valid returns true if the mode is a known value.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeConditional:
		return true
	default:
		return false
	}
}

// ConditionType is the kind of check a step condition performs.
type ConditionType string

const (
	// ConditionSuccess is true when the referenced step completed.
	ConditionSuccess ConditionType = "success"
	// ConditionFailure is true when the referenced step failed.
	ConditionFailure ConditionType = "failure"
	// ConditionOutputMatches is true when the referenced step's output matches Pattern.
	ConditionOutputMatches ConditionType = "output_matches"
	// ConditionVariableEquals is true when Variable currently equals Value.
	ConditionVariableEquals ConditionType = "variable_equals"
)

// Valid returns true if the condition type is a known value.
func (c ConditionType) Valid() bool {
	switch c {
	case ConditionSuccess, ConditionFailure, ConditionOutputMatches, ConditionVariableEquals:
		return true
	default:
		return false
	}
}

// WorkflowDefinition is a named, versioned graph of steps.
// It is treated as immutable for the duration of an execution.
type WorkflowDefinition struct {
	// Name is the unique key of the workflow, also used as its file name.
	Name string `json:"name"`
	// Description is a human readable summary.
	Description string `json:"description,omitempty"`
	// Version is a free-form version string.
	Version string `json:"version,omitempty"`
	// Mode is the execution mode. Empty means sequential.
	Mode ExecutionMode `json:"mode,omitempty"`
	// Variables seeds the variable namespace of every execution.
	Variables map[string]any `json:"variables,omitempty"`
	// Steps is the ordered list of steps.
	Steps []WorkflowStep `json:"steps"`
	// ContinueOnError keeps scheduling after a step fails.
	ContinueOnError bool `json:"continueOnError,omitempty"`
	// Timeout is the total time budget in seconds. Zero means unlimited.
	Timeout int `json:"timeout,omitempty"`
}

// EffectiveMode returns the mode, defaulting to sequential when unset.
func (d *WorkflowDefinition) EffectiveMode() ExecutionMode {
	if d.Mode == "" {
		return ModeSequential
	}
	return d.Mode
}

// TimeBudget returns the total time budget as a duration.
func (d *WorkflowDefinition) TimeBudget() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// Step returns the step with the given id, or nil.
func (d *WorkflowDefinition) Step(id string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the definition.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	if d == nil {
		return nil
	}
	out := *d
	if d.Variables != nil {
		out.Variables = make(map[string]any, len(d.Variables))
		for k, v := range d.Variables {
			out.Variables[k] = v
		}
	}
	out.Steps = make([]WorkflowStep, len(d.Steps))
	for i, s := range d.Steps {
		out.Steps[i] = s.clone()
	}
	return &out
}

// WorkflowStep is the smallest unit of work: one agent invocation.
type WorkflowStep struct {
	// ID is unique within the definition.
	ID string `json:"id"`
	// Name is a display name.
	Name string `json:"name,omitempty"`
	// Agent is the name of the agent that runs the task.
	Agent string `json:"agent"`
	// Task is the task template; it may embed ${name} placeholders.
	Task string `json:"task"`
	// DependsOn lists step ids that must complete before this step.
	DependsOn []string `json:"dependsOn,omitempty"`
	// Outputs extract variables from the agent's output.
	Outputs []OutputRule `json:"outputs,omitempty"`
	// Condition gates the step in conditional mode.
	Condition *StepCondition `json:"condition,omitempty"`
	// Timeout bounds each agent attempt, in seconds. Zero means unlimited.
	Timeout int `json:"timeout,omitempty"`
	// Retries is the number of extra attempts after a failed agent run.
	Retries int `json:"retries,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (s *WorkflowStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func (s WorkflowStep) clone() WorkflowStep {
	out := s
	out.DependsOn = append([]string(nil), s.DependsOn...)
	out.Outputs = append([]OutputRule(nil), s.Outputs...)
	if s.Condition != nil {
		c := *s.Condition
		out.Condition = &c
	}
	return out
}

// OutputRule extracts a variable from a step's output with a regular expression.
type OutputRule struct {
	Name      string `json:"name"`
	Extractor string `json:"extractor"`
}

// StepCondition decides whether a step runs in conditional mode.
type StepCondition struct {
	Type     ConditionType `json:"type"`
	StepID   string        `json:"stepId,omitempty"`
	Pattern  string        `json:"pattern,omitempty"`
	Variable string        `json:"variable,omitempty"`
	Value    any           `json:"value,omitempty"`
}
