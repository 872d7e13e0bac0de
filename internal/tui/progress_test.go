package tui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/modmigrate/internal/logbook"
	"github.com/kingrea/modmigrate/internal/migrate"
	"github.com/kingrea/modmigrate/internal/report"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model %T", next)
	}
	return model, cmd
}

func TestFeedDropsWhenFull(t *testing.T) {
	feed := NewFeed()
	for i := 0; i < 200; i++ {
		feed.Observe(migrate.Progress{Phase: migrate.PhaseReplicate})
	}
	if got := len(feed.updates); got != cap(feed.updates) {
		t.Fatalf("buffered %d updates, want %d", got, cap(feed.updates))
	}
}

func TestProgressMarksEarlierPhasesDone(t *testing.T) {
	m := NewModel(NewFeed(), nil)
	m, cmd := update(t, m, progressMsg{Phase: migrate.PhaseReplicate, Module: "Lang1"})
	if cmd == nil {
		t.Fatalf("expected the model to keep listening")
	}
	m, _ = update(t, m, progressMsg{Phase: migrate.PhaseLinks})
	if !m.seen[migrate.PhaseReplicate] {
		t.Fatalf("replicate should be marked done")
	}
	if m.seen[migrate.PhaseLinks] {
		t.Fatalf("links is still running")
	}
	view := m.View()
	if !strings.Contains(view, "✓ Replicate modules") {
		t.Fatalf("view missing finished phase:\n%s", view)
	}
	if !strings.Contains(view, "Repair module links") {
		t.Fatalf("view missing active phase:\n%s", view)
	}
}

func TestResultQuitsAndRendersSummary(t *testing.T) {
	m := NewModel(NewFeed(), nil)
	m, _ = update(t, m, progressMsg{Phase: migrate.PhasePersist})
	rep := migrate.Report{Replicated: []string{"Lang1_cloned"}, NodesRewritten: 3}
	m, cmd := update(t, m, resultMsg{Report: rep})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	result, ok := m.Result()
	if !ok || result.Err != nil {
		t.Fatalf("result = %+v, %v", result, ok)
	}
	if view := m.View(); !strings.Contains(view, "1 modules replicated") {
		t.Fatalf("summary missing:\n%s", view)
	}
}

func TestResultErrorIsRendered(t *testing.T) {
	m := NewModel(NewFeed(), nil)
	m, _ = update(t, m, resultMsg{Err: errors.New("modules never loaded")})
	if view := m.View(); !strings.Contains(view, "modules never loaded") {
		t.Fatalf("error missing:\n%s", view)
	}
}

func TestQuitKeyInterrupts(t *testing.T) {
	m := NewModel(NewFeed(), nil)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !m.Interrupted() {
		t.Fatalf("q should interrupt")
	}
	if _, ok := m.Result(); ok {
		t.Fatalf("no result expected")
	}
}

func TestViewShowsLogTail(t *testing.T) {
	book, err := logbook.New(filepath.Join(t.TempDir(), "logs", "modmigrate.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	book.Warn("Sol1: can't find replacement for dependency Gone, dropping it")
	m := NewModel(NewFeed(), book)
	view := m.View()
	if !strings.Contains(view, "LOG · modmigrate.log") || !strings.Contains(view, "dropping it") {
		t.Fatalf("log tail missing:\n%s", view)
	}
}

func TestRenderRun(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run := report.Run{
		ID:         "run-1",
		Project:    "demo",
		Outcome:    report.OutcomePartial,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Replicated: []string{"Lang1_cloned"},
		Failures:   []report.Failure{{Module: "Sol1", Phase: "replicate", Error: "copy failed"}},
		Counts:     map[string]int{"nodes_rewritten": 4, "imports_dropped": 0},
	}
	out := RenderRun(run)
	for _, want := range []string{"demo", "PARTIAL", "run-1", "Lang1_cloned", "nodes_rewritten", "copy failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "imports_dropped") {
		t.Fatalf("zero counts should be hidden:\n%s", out)
	}
}
