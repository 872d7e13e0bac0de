package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/modmigrate/internal/report"
)

var (
	labelStyleComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStylePartial  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleWaiting  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleDefault  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	keyStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

func outcomeStyle(outcome report.Outcome) lipgloss.Style {
	switch outcome {
	case report.OutcomeComplete:
		return labelStyleComplete
	case report.OutcomePartial:
		return labelStylePartial
	case report.OutcomeWaiting:
		return labelStyleWaiting
	default:
		return labelStyleDefault
	}
}

// RenderRun formats a persisted run for the terminal.
func RenderRun(run report.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("⬡ "+run.Project), outcomeStyle(run.Outcome).Render(strings.ToUpper(string(run.Outcome))))
	fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("run:"), run.ID)
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(&b, "%s %s (%s)\n", keyStyle.Render("started:"), run.StartedAt.Format("2006-01-02 15:04:05"), run.Duration().Round(1e6))
	}
	if len(run.Replicated) > 0 {
		fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("replicated:"), strings.Join(run.Replicated, ", "))
	}
	for _, name := range run.CountNames() {
		if run.Counts[name] == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-24s %d\n", name, run.Counts[name])
	}
	for _, f := range run.Failures {
		fmt.Fprintf(&b, "%s %s [%s]: %s\n", errorStyle.Render("✗"), f.Module, f.Phase, f.Error)
	}
	for _, path := range run.Pending {
		fmt.Fprintf(&b, "%s %s\n", labelStyleWaiting.Render("…"), path)
	}
	return b.String()
}
