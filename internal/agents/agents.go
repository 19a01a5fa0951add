// Package agents defines the agent collaborator contract consumed by the
// orchestrator and a file-backed agent store.
package agents

import (
	"context"

	"github.com/foragen/foragen-cli/pkg/models"
)

// Store resolves agent definitions by name.
type Store interface {
	// LoadAgent returns the named agent or an error wrapping models.ErrNotFound.
	LoadAgent(name string) (*models.AgentDefinition, error)
}

// Executor runs a single agent task, possibly over several model turns,
// and returns the agent's final text.
type Executor interface {
	Run(ctx context.Context, req RunRequest) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req RunRequest) (string, error)

// Run calls f(ctx, req).
func (f ExecutorFunc) Run(ctx context.Context, req RunRequest) (string, error) {
	return f(ctx, req)
}

// RunRequest is everything an Executor needs for one task.
type RunRequest struct {
	// AgentName is the resolved agent's name.
	AgentName string
	Prompt    PromptConfig
	Model     models.ModelConfig
	Run       models.RunConfig
	Tools     ToolConfig
	// Variables is a snapshot of the workflow variables at dispatch time.
	Variables map[string]any
}

// PromptConfig carries the prompts for a run.
type PromptConfig struct {
	SystemPrompt string
	Task         string
}

// ToolConfig lists the tools the agent may use.
type ToolConfig struct {
	Tools []string
}

// NewRunRequest builds the request for running task with agent.
func NewRunRequest(agent *models.AgentDefinition, task string, vars map[string]any) RunRequest {
	return RunRequest{
		AgentName: agent.Name,
		Prompt: PromptConfig{
			SystemPrompt: agent.SystemPrompt,
			Task:         task,
		},
		Model:     agent.ModelConfig,
		Run:       agent.RunConfig,
		Tools:     ToolConfig{Tools: append([]string(nil), agent.Tools...)},
		Variables: vars,
	}
}
