// Package report persists the summary of the last migration run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no run has been recorded yet.
var ErrNotFound = errors.New("report: run not found")

// Outcome is the coarse result of a run.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeWaiting  Outcome = "waiting"
)

// Failure is one module a phase could not handle.
type Failure struct {
	Module string `json:"module"`
	Phase  string `json:"phase"`
	Error  string `json:"error"`
}

// Run is the persisted snapshot of a migration run.
type Run struct {
	ID         string         `json:"id"`
	Project    string         `json:"project"`
	Outcome    Outcome        `json:"outcome"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Replicated []string       `json:"replicated,omitempty"`
	Failures   []Failure      `json:"failures,omitempty"`
	Pending    []string       `json:"pending,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountNames returns the count keys in sorted order.
func (r Run) CountNames() []string {
	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store persists run snapshots.
type Store interface {
	Load() (Run, error)
	Save(Run) error
}

// Repository stores the last run as JSON at a fixed path.
type Repository struct {
	path string
}

// NewRepository creates a repository writing to path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the backing file.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the persisted run if present.
func (r *Repository) Load() (Run, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("report: read %s: %w", r.path, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return Run{}, fmt.Errorf("report: decode %s: %w", r.path, err)
	}
	return run, nil
}

// Save writes the run to disk, replacing the previous one.
func (r *Repository) Save(run Run) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("report: ensure dir: %w", err)
	}
	encoded, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("report: replace %s: %w", r.path, err)
	}
	return nil
}
