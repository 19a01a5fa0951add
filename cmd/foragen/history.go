package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/foragen/foragen-cli/internal/history"
)

var (
	historyName  string
	historyLimit int
	historyJSON  bool
)

var workflowHistoryCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded workflow runs",
	Long: `Show recorded workflow runs, newest first.

With a run id, shows that run's steps.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflowHistory,
}

func init() {
	workflowHistoryCmd.Flags().StringVar(&historyName, "name", "", "Only show runs of this workflow")
	workflowHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs")
	workflowHistoryCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
}

func runWorkflowHistory(cmd *cobra.Command, args []string) error {
	a := newApp(appConfig)
	db, err := a.openHistory()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("run history is disabled (history.enabled = false)")
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := db.Get(args[0])
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(out, run)
		}
		fmt.Fprintln(out, renderRunTable([]history.Run{*run}))
		fmt.Fprintln(out, renderHistorySteps(run.Steps))
		if run.Error != "" {
			fmt.Fprintf(out, "error: %s\n", run.Error)
		}
		return nil
	}

	runs, err := db.List(historyName, historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	fmt.Fprintln(out, renderRunTable(runs))
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
