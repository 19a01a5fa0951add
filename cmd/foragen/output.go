package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/foragen/foragen-cli/internal/history"
	"github.com/foragen/foragen-cli/internal/orchestrator"
	"github.com/foragen/foragen-cli/internal/store"
	"github.com/foragen/foragen-cli/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderWorkflowTable renders workflow metadata as a table.
func renderWorkflowTable(items []store.Metadata) string {
	t := newTable("NAME", "LEVEL", "MODE", "STEPS", "VERSION", "MODIFIED", "DESCRIPTION")
	for _, m := range items {
		modified := "-"
		if !m.Modified.IsZero() {
			modified = humanize.Time(m.Modified)
		}
		t.Row(m.Name, string(m.Level), string(m.Mode), strconv.Itoa(m.StepCount), m.Version, modified, truncate(m.Description, 48))
	}
	return t.String()
}

// renderStepTable renders the per-step outcome of a run.
func renderStepTable(r *models.WorkflowResult) string {
	t := newTable("STEP", "AGENT", "STATUS", "ATTEMPTS", "DURATION", "ERROR")
	for _, s := range r.StepResults {
		t.Row(s.StepID, s.AgentName, colorStepStatus(s.Status), strconv.Itoa(s.Attempts), formatDuration(s.Duration), truncate(s.Error, 60))
	}
	return t.String()
}

// renderHistorySteps renders the steps of a recorded run.
func renderHistorySteps(steps []history.Step) string {
	t := newTable("STEP", "AGENT", "STATUS", "ATTEMPTS", "DURATION", "ERROR")
	for _, s := range steps {
		t.Row(s.StepID, s.Agent, colorStepStatus(s.Status), strconv.Itoa(s.Attempts), formatDuration(s.Duration), truncate(s.Error, 60))
	}
	return t.String()
}

// renderRunTable renders history runs.
func renderRunTable(runs []history.Run) string {
	t := newTable("RUN", "WORKFLOW", "STATUS", "STEPS", "STARTED", "DURATION")
	for _, r := range runs {
		steps := fmt.Sprintf("%d ok / %d failed / %d skipped", r.CompletedSteps, r.FailedSteps, r.SkippedSteps)
		t.Row(r.ID, r.Workflow, colorWorkflowStatus(r.Status), steps, humanize.Time(r.StartedAt), formatDuration(r.Duration))
	}
	return t.String()
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

func colorWorkflowStatus(s models.WorkflowStatus) string {
	switch s {
	case models.WorkflowStatusCompleted:
		return color.GreenString(string(s))
	case models.WorkflowStatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func colorStepStatus(s models.StepStatus) string {
	switch s {
	case models.StepStatusCompleted:
		return color.GreenString(string(s))
	case models.StepStatusFailed:
		return color.RedString(string(s))
	case models.StepStatusSkipped:
		return color.HiBlackString(string(s))
	default:
		return string(s)
	}
}

// progressPrinter writes one line per orchestrator event.
type progressPrinter struct {
	w io.Writer
}

func (p *progressPrinter) handle(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventWorkflowStart:
		fmt.Fprintf(p.w, "%s %s: %d steps, %s mode\n", color.CyanString("▶"), e.Workflow, e.TotalSteps, e.Mode)
	case orchestrator.EventStepStart:
		fmt.Fprintf(p.w, "  %s %s %s\n", color.CyanString("→"), stepLabel(e), mutedStyle.Render("("+e.AgentName+")"))
	case orchestrator.EventStepEnd:
		if e.StepStatus == models.StepStatusCompleted {
			printStatus(p.w, "  ✓", fmt.Sprintf("%s %s", stepLabel(e), formatDuration(e.Duration)), color.FgGreen)
		} else {
			printStatus(p.w, "  ✗", fmt.Sprintf("%s: %s", stepLabel(e), e.Error), color.FgRed)
		}
	case orchestrator.EventStepSkip:
		printStatus(p.w, "  ⊘", fmt.Sprintf("%s skipped: %s", e.StepID, e.Reason), color.FgHiBlack)
	case orchestrator.EventVariableUpdate:
		fmt.Fprintf(p.w, "    %s = %v\n", e.Variable, e.Value)
	case orchestrator.EventWorkflowEnd:
		fmt.Fprintf(p.w, "%s %s %s in %s (%d ok, %d failed)\n", color.CyanString("■"), e.Workflow,
			colorWorkflowStatus(e.Status), formatDuration(e.Duration), e.SuccessCount, e.FailureCount)
	}
}

// stepLabel prefers the step's display name when the event carries one.
func stepLabel(e orchestrator.Event) string {
	if e.StepName != "" {
		return e.StepName
	}
	return e.StepID
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
