package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foragen/foragen-cli/internal/store"
	"github.com/foragen/foragen-cli/pkg/models"
)

var (
	runVars []string
	runJSON bool
)

var workflowRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a workflow",
	Long: `Run a stored workflow and print the outcome of each step.

Variables given with --var override the workflow's own variables. Values
that parse as JSON (numbers, booleans, arrays, objects) keep their type;
anything else is a string.

Examples:
  foragen workflow run code-review
  foragen workflow run bug-fix --var issue="login fails" --var priority=2
  foragen workflow run code-review --json`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowRun,
}

func init() {
	workflowRunCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set a variable (key=value), repeatable")
	workflowRunCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
}

func runWorkflowRun(cmd *cobra.Command, args []string) error {
	overrides, err := parseVars(runVars)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(appConfig)
	defer a.logger.Close()

	client, err := a.newClient()
	if err != nil {
		return err
	}
	orch := a.newOrchestrator(client)
	out := cmd.OutOrStdout()
	if !runJSON {
		progress := &progressPrinter{w: out}
		unsubscribe := orch.On(progress.handle)
		defer unsubscribe()
	}

	s := a.newStore(store.WithRunner(orch))
	if appConfig.Workflows.Watch {
		if err := s.Watch(ctx); err != nil {
			a.logger.Warn(err, "workflow watch disabled")
		}
	}

	result, err := s.Execute(ctx, args[0], overrides)
	if err != nil {
		return err
	}
	recordHistory(a, result)

	if runJSON {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		if len(result.StepResults) > 0 {
			fmt.Fprintln(out, renderStepTable(result))
		}
		if result.Error != "" {
			fmt.Fprintf(out, "error: %s\n", result.Error)
		}
		in, outTok := client.Tracker().Total()
		fmt.Fprintf(out, "run %s: %d API calls, %d input / %d output tokens, ~$%.4f\n",
			result.RunID, client.Tracker().Calls(), in, outTok, client.Tracker().Cost())
	}

	if result.Status != models.WorkflowStatusCompleted {
		return fmt.Errorf("workflow %s %s", result.WorkflowName, result.Status)
	}
	return nil
}

// recordHistory stores the result in run history. Failures are logged, not
// returned: the run itself already happened.
func recordHistory(a *app, result *models.WorkflowResult) {
	db, err := a.openHistory()
	if err != nil {
		a.logger.Warn(err, "open run history")
		return
	}
	if db == nil {
		return
	}
	defer db.Close()
	if err := db.Record(result); err != nil {
		a.logger.Warn(err, "record run history")
	}
}

// parseVars converts key=value pairs to variable overrides.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: want key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil || raw == "" {
			value = raw
		}
		vars[key] = value
	}
	return vars, nil
}
