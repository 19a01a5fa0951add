package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foragen/foragen-cli/internal/orchestrator"
	"github.com/foragen/foragen-cli/internal/store"
)

var (
	listLevel string
	listSort  string
	listOrder string

	createLevel     string
	createOverwrite bool
)

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Aliases: []string{"wf"},
	Short:   "Manage and run workflows",
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	Long: `List workflows from all levels.

Without --level, shows the effective set: a project workflow hides a user
or builtin workflow of the same name. With --level, shows only that level.`,
	Args: cobra.NoArgs,
	RunE: runWorkflowList,
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a workflow definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newApp(appConfig).newStore()
		def, err := s.Load(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(def, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var workflowCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Add a workflow from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := store.ParseLevel(createLevel)
		if err != nil {
			return err
		}
		def, err := store.ReadDefinitionFile(args[0])
		if err != nil {
			return err
		}
		if err := newApp(appConfig).newStore().Create(def, level, createOverwrite); err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Created workflow %s (%s)", def.Name, level), color.FgGreen)
		return nil
	},
}

var workflowUpdateCmd = &cobra.Command{
	Use:   "update <name> <file>",
	Short: "Replace a stored workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := store.ReadDefinitionFile(args[1])
		if err != nil {
			return err
		}
		if err := newApp(appConfig).newStore().Update(args[0], def); err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Updated workflow %s", def.Name), color.FgGreen)
		return nil
	},
}

var workflowDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a user or project workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newApp(appConfig).newStore().Delete(args[0]); err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Deleted workflow %s", args[0]), color.FgGreen)
		return nil
	},
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a workflow file without storing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowValidate,
}

func init() {
	workflowListCmd.Flags().StringVar(&listLevel, "level", "", "Only list one level (builtin, user, project)")
	workflowListCmd.Flags().StringVar(&listSort, "sort", "name", "Sort by name or modified")
	workflowListCmd.Flags().StringVar(&listOrder, "order", "asc", "Sort order (asc, desc)")

	workflowCreateCmd.Flags().StringVar(&createLevel, "level", string(store.LevelUser), "Level to store at (user, project)")
	workflowCreateCmd.Flags().BoolVar(&createOverwrite, "overwrite", false, "Replace an existing workflow at the same level")

	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowCreateCmd)
	workflowCmd.AddCommand(workflowUpdateCmd)
	workflowCmd.AddCommand(workflowDeleteCmd)
	workflowCmd.AddCommand(workflowValidateCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowHistoryCmd)
}

func runWorkflowList(cmd *cobra.Command, args []string) error {
	filter, err := parseListFilter(listLevel, listSort, listOrder)
	if err != nil {
		return err
	}
	items, err := newApp(appConfig).newStore().List(filter)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No workflows found.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderWorkflowTable(items))
	return nil
}

// parseListFilter converts the list flags to a store filter.
func parseListFilter(level, sortBy, order string) (store.Filter, error) {
	var f store.Filter
	if level != "" {
		l, err := store.ParseLevel(level)
		if err != nil {
			return f, err
		}
		f.Level = l
	}
	switch store.SortField(sortBy) {
	case "", store.SortByName:
		f.SortBy = store.SortByName
	case store.SortByModified:
		f.SortBy = store.SortByModified
	default:
		return f, fmt.Errorf("unknown sort field %q (want name or modified)", sortBy)
	}
	switch order {
	case "", "asc":
	case "desc":
		f.Descending = true
	default:
		return f, fmt.Errorf("unknown sort order %q (want asc or desc)", order)
	}
	return f, nil
}

func runWorkflowValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	def, err := store.ReadDefinitionFile(args[0])
	if err != nil {
		printStatus(out, "✗", err.Error(), color.FgRed)
		return err
	}
	if err := orchestrator.Validate(def); err != nil {
		printStatus(out, "✗", err.Error(), color.FgRed)
		return err
	}
	printStatus(out, "✓", fmt.Sprintf("%s is valid: %d steps, %s mode", def.Name, len(def.Steps), def.EffectiveMode()), color.FgGreen)
	return nil
}
