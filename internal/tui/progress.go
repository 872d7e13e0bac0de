// internal/tui/progress.go
//
// Progress view for a migration run. It follows The Elm Architecture used by
// bubbletea: engine progress arrives as messages, Update folds them into
// the model and View renders the phase list, the log tail and the outcome.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/modmigrate/internal/logbook"
	"github.com/kingrea/modmigrate/internal/migrate"
)

const logTailLines = 6

var phaseOrder = []migrate.Phase{
	migrate.PhaseReplicate,
	migrate.PhaseWaiting,
	migrate.PhaseLinks,
	migrate.PhaseRewrite,
	migrate.PhaseReferences,
	migrate.PhasePersist,
}

var phaseLabels = map[migrate.Phase]string{
	migrate.PhaseReplicate:  "Replicate modules",
	migrate.PhaseWaiting:    "Wait for modules to load",
	migrate.PhaseLinks:      "Repair module links",
	migrate.PhaseRewrite:    "Rewrite nodes",
	migrate.PhaseReferences: "Repair references",
	migrate.PhasePersist:    "Save modules",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Result is the final outcome of the run shown by the view.
type Result struct {
	Report migrate.Report
	Err    error
}

// Feed connects an engine to the view. Observe is safe to pass to
// migrate.WithObserver; it drops updates rather than block the engine.
type Feed struct {
	updates chan migrate.Progress
	result  chan Result
}

// NewFeed creates a feed with room for a burst of updates.
func NewFeed() *Feed {
	return &Feed{
		updates: make(chan migrate.Progress, 64),
		result:  make(chan Result, 1),
	}
}

// Observe forwards engine progress.
func (f *Feed) Observe(p migrate.Progress) {
	select {
	case f.updates <- p:
	default:
	}
}

// Finish hands the final outcome to the view. Call it once.
func (f *Feed) Finish(report migrate.Report, err error) {
	f.result <- Result{Report: report, Err: err}
}

type progressMsg migrate.Progress

type resultMsg Result

// Model is the bubbletea model of the progress view.
type Model struct {
	feed    *Feed
	spinner spinner.Model
	book    *logbook.Logbook

	phase  migrate.Phase
	module string
	seen   map[migrate.Phase]bool

	result      *Result
	interrupted bool
}

// NewModel builds the view for feed. book may be nil.
func NewModel(feed *Feed, book *logbook.Logbook) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = activeStyle
	return Model{feed: feed, spinner: s, book: book, seen: map[migrate.Phase]bool{}}
}

// Init starts the spinner and the feed listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitProgress(), m.waitResult())
}

func (m Model) waitProgress() tea.Cmd {
	return func() tea.Msg {
		return progressMsg(<-m.feed.updates)
	}
}

func (m Model) waitResult() tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-m.feed.result)
	}
}

// Update folds a message into the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.interrupted = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressMsg:
		if msg.Phase != m.phase {
			m.seen[m.phase] = true
		}
		m.phase = msg.Phase
		m.module = msg.Module
		return m, m.waitProgress()
	case resultMsg:
		result := Result(msg)
		m.result = &result
		m.seen[m.phase] = true
		return m, tea.Quit
	}
	return m, nil
}

// Result returns the run outcome once it arrived.
func (m Model) Result() (Result, bool) {
	if m.result == nil {
		return Result{}, false
	}
	return *m.result, true
}

// Interrupted reports whether the user left the view early.
func (m Model) Interrupted() bool {
	return m.interrupted
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("⬡ MODMIGRATE"))
	b.WriteString("\n")
	for _, phase := range phaseOrder {
		label := phaseLabels[phase]
		switch {
		case phase == m.phase && m.result == nil:
			line := fmt.Sprintf("%s %s", m.spinner.View(), activeStyle.Render(label))
			if m.module != "" {
				line += hintStyle.Render(" · " + m.module)
			}
			b.WriteString(line)
		case m.seen[phase]:
			b.WriteString(doneStyle.Render("✓ " + label))
		default:
			b.WriteString(pendingStyle.Render("  " + label))
		}
		b.WriteString("\n")
	}
	if tail := m.renderLogTail(); tail != "" {
		b.WriteString("\n")
		b.WriteString(tail)
		b.WriteString("\n")
	}
	if m.result != nil {
		b.WriteString("\n")
		if m.result.Err != nil {
			b.WriteString(errorStyle.Render("✗ " + m.result.Err.Error()))
		} else {
			b.WriteString(doneStyle.Render(m.result.Report.Summary()))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("q: stop watching"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderLogTail() string {
	if m.book == nil {
		return ""
	}
	lines, _ := m.book.Tail(logTailLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(m.book.Path())
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

// Run shows the progress view until the run finishes or the user quits.
func Run(feed *Feed, book *logbook.Logbook) (Result, bool, error) {
	final, err := tea.NewProgram(NewModel(feed, book)).Run()
	if err != nil {
		return Result{}, false, fmt.Errorf("tui: %w", err)
	}
	model, ok := final.(Model)
	if !ok {
		return Result{}, false, fmt.Errorf("tui: unexpected model %T", final)
	}
	result, done := model.Result()
	return result, done, nil
}
