package models

// AgentDefinition describes a named agent: a system prompt plus the model,
// tool and run configuration it executes with.
type AgentDefinition struct {
	// Name is the unique identifier for this agent.
	Name string `json:"name" yaml:"name"`
	// Description explains what the agent is for.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// SystemPrompt is sent as the system prompt for every task.
	SystemPrompt string `json:"systemPrompt" yaml:"systemPrompt"`
	// Tools lists tool names the agent may use.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	// ModelConfig selects and tunes the model.
	ModelConfig ModelConfig `json:"modelConfig" yaml:"modelConfig"`
	// RunConfig bounds the agent's run.
	RunConfig RunConfig `json:"runConfig" yaml:"runConfig"`
	// Path is the file the definition was loaded from, if any.
	Path string `json:"-" yaml:"-"`
}

// ModelConfig holds model selection and sampling settings.
type ModelConfig struct {
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

// RunConfig bounds a multi-turn agent run.
type RunConfig struct {
	// MaxTurns is the maximum number of model calls. Zero means the executor default.
	MaxTurns int `json:"maxTurns,omitempty" yaml:"maxTurns,omitempty"`
	// MaxTimeMinutes bounds the wall-clock time of the run. Zero means unlimited.
	MaxTimeMinutes int `json:"maxTimeMinutes,omitempty" yaml:"maxTimeMinutes,omitempty"`
}
