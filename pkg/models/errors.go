package models

import "errors"

// Error taxonomy shared by the store, the orchestrator and the agent layer.
// Callers match with errors.Is; call sites add context with %w.
var (
	// ErrNotFound indicates an unknown workflow or agent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig indicates a malformed or incomplete definition.
	ErrInvalidConfig = errors.New("invalid workflow config")
	// ErrAlreadyExists indicates a create collision without overwrite.
	ErrAlreadyExists = errors.New("already exists")
	// ErrReadOnly indicates a write to the builtin level.
	ErrReadOnly = errors.New("level is read-only")
	// ErrDependencyFailed indicates a step's dependencies did not all complete.
	ErrDependencyFailed = errors.New("dependency not satisfied")
	// ErrAgentNotFound indicates a step references an unknown agent.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrStepFailed wraps any error raised while executing a step.
	ErrStepFailed = errors.New("step failed")
	// ErrTimeout indicates a step attempt exceeded its timeout.
	ErrTimeout = errors.New("timed out")
	// ErrCancelled indicates execution stopped on cancellation.
	ErrCancelled = errors.New("cancelled")
)
