package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/foragen/foragen-cli/internal/agents"
	"github.com/foragen/foragen-cli/internal/logging"
)

const (
	defaultMaxTurns  = 10
	defaultMaxTokens = 8192
	continuePrompt   = "Continue exactly where you left off."
)

// AgentExecutor runs an agent task as a multi-turn conversation. A turn
// that stops on the token limit is continued in the next turn and the text
// of all turns is joined. Tools are not executed; the run ends on the
// first turn that finishes normally.
type AgentExecutor struct {
	client *Client
	logger *logging.Logger
}

// NewAgentExecutor creates an executor on client.
func NewAgentExecutor(client *Client, logger *logging.Logger) *AgentExecutor {
	return &AgentExecutor{client: client, logger: logger}
}

// Run implements agents.Executor.
func (e *AgentExecutor) Run(ctx context.Context, req agents.RunRequest) (string, error) {
	if req.Run.MaxTimeMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Run.MaxTimeMinutes)*time.Minute)
		defer cancel()
	}

	maxTurns := req.Run.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	maxTokens := int64(req.Model.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if len(req.Tools.Tools) > 0 {
		e.logger.Debugf("agent %s: tools %v are not executed by this runner", req.AgentName, req.Tools.Tools)
	}

	params := anthropic.MessageNewParams{
		Model:     e.client.ResolveModel(req.Model.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt.Task)),
		},
	}
	if system := systemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Model.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Model.Temperature)
	}

	var output strings.Builder
	for turn := 1; turn <= maxTurns; turn++ {
		resp, err := e.client.sdk().Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("agent %s turn %d: %w", req.AgentName, turn, err)
		}
		e.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var text strings.Builder
		for _, block := range resp.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				text.WriteString(variant.Text)
			}
		}
		output.WriteString(text.String())
		e.logger.Debugf("agent %s turn %d: stop=%s in=%d out=%d",
			req.AgentName, turn, resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens)

		if resp.StopReason != anthropic.StopReasonMaxTokens {
			return output.String(), nil
		}

		params.Messages = append(params.Messages,
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(text.String())),
			anthropic.NewUserMessage(anthropic.NewTextBlock(continuePrompt)),
		)
	}

	return "", fmt.Errorf("agent %s: max turns (%d) reached before the answer finished", req.AgentName, maxTurns)
}

// systemPrompt appends the workflow variables to the agent's prompt so
// the model sees the same context the task template was rendered with.
func systemPrompt(req agents.RunRequest) string {
	if len(req.Variables) == 0 {
		return req.Prompt.SystemPrompt
	}

	names := make([]string, 0, len(req.Variables))
	for name := range req.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(req.Prompt.SystemPrompt)
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("## Workflow variables\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %v\n", name, req.Variables[name])
	}
	return b.String()
}

var _ agents.Executor = (*AgentExecutor)(nil)
