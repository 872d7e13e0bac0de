package migrate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kingrea/modmigrate/internal/report"
)

// Failure records a module that could not be fully handled by a phase.
type Failure struct {
	Module string
	Phase  Phase
	Error  string
}

// Report summarizes one run.
type Report struct {
	Project    string
	StartedAt  time.Time
	FinishedAt time.Time

	Replicated []string
	Failures   []Failure
	// Pending lists descriptors never announced by the loader.
	Pending []string

	Schemas int
	Models  int

	DependenciesRepaired int
	DependenciesDropped  int
	LanguagesRepaired    int
	LanguagesDropped     int
	ImportsRepaired      int
	ImportsDropped       int
	RuntimeRepaired      int
	RuntimeDropped       int

	NodesRewritten       int
	UnknownHandles       int
	ForeignHandles       int
	ReferencesRetargeted int
}

func (r *Report) fail(module string, phase Phase, err error) {
	r.Failures = append(r.Failures, Failure{Module: module, Phase: phase, Error: err.Error()})
}

// Failed reports whether module failed in any phase.
func (r Report) Failed(module string) bool {
	for _, f := range r.Failures {
		if f.Module == module {
			return true
		}
	}
	return false
}

// Summary renders a one-line overview.
func (r Report) Summary() string {
	parts := []string{
		fmt.Sprintf("%d modules replicated", len(r.Replicated)),
		fmt.Sprintf("%d failed", len(r.Failures)),
		fmt.Sprintf("%d dependencies repaired", r.DependenciesRepaired),
		fmt.Sprintf("%d nodes rewritten", r.NodesRewritten),
		fmt.Sprintf("%d references retargeted", r.ReferencesRetargeted),
	}
	if len(r.Pending) > 0 {
		parts = append(parts, fmt.Sprintf("%d still loading", len(r.Pending)))
	}
	return strings.Join(parts, ", ")
}

// Counts returns the numeric fields keyed by a stable name.
func (r Report) Counts() map[string]int {
	return map[string]int{
		"schemas":               r.Schemas,
		"models":                r.Models,
		"dependencies_repaired": r.DependenciesRepaired,
		"dependencies_dropped":  r.DependenciesDropped,
		"languages_repaired":    r.LanguagesRepaired,
		"languages_dropped":     r.LanguagesDropped,
		"imports_repaired":      r.ImportsRepaired,
		"imports_dropped":       r.ImportsDropped,
		"runtime_repaired":      r.RuntimeRepaired,
		"runtime_dropped":       r.RuntimeDropped,
		"nodes_rewritten":       r.NodesRewritten,
		"unknown_handles":       r.UnknownHandles,
		"foreign_handles":       r.ForeignHandles,
		"references_retargeted": r.ReferencesRetargeted,
	}
}

// Record converts the report into its persisted form.
func (r Report) Record() report.Run {
	run := report.Run{
		ID:         report.NewRunID(),
		Project:    r.Project,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Counts:     r.Counts(),
		Replicated: append([]string(nil), r.Replicated...),
		Pending:    append([]string(nil), r.Pending...),
	}
	sort.Strings(run.Replicated)
	for _, f := range r.Failures {
		run.Failures = append(run.Failures, report.Failure{Module: f.Module, Phase: string(f.Phase), Error: f.Error})
	}
	switch {
	case len(r.Pending) > 0:
		run.Outcome = report.OutcomeWaiting
	case len(r.Failures) > 0:
		run.Outcome = report.OutcomePartial
	default:
		run.Outcome = report.OutcomeComplete
	}
	return run
}
