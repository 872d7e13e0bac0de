// Package migrate replaces the identity of every module in a project while
// keeping the content addressed through that identity intact.
//
// A run has four phases. Replicate copies each module under a temporary
// name, drops the original and renames the copy back. Once the loader has
// announced every copy, RepairLinks, RewriteNodes and RepairReferences run
// under one exclusive project write.
package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/kingrea/modmigrate/internal/identity"
	"github.com/kingrea/modmigrate/internal/loader"
	"github.com/kingrea/modmigrate/internal/project"
)

const defaultCloneSuffix = "_cloned"

// ErrNoProject is returned by Run when the engine has nothing to migrate.
var ErrNoProject = errors.New("migrate: no project")

// Logger is the run log.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Storage manages the on-disk representation of modules.
type Storage interface {
	Copy(m *project.Module, name string) (*project.Module, error)
	Delete(m *project.Module) error
	Rename(m *project.Module, name string) error
	Replace(m *project.Module, name string) error
	Save(m *project.Module) error
}

// Loader confirms that replicated modules are available again.
type Loader interface {
	Subscribe(capacity int) loader.Subscription
	Schedule(ctx context.Context, paths ...string)
}

// Phase names a stage of a run.
type Phase string

const (
	PhaseReplicate  Phase = "replicate"
	PhaseWaiting    Phase = "waiting"
	PhaseLinks      Phase = "links"
	PhaseRewrite    Phase = "rewrite"
	PhaseReferences Phase = "references"
	PhasePersist    Phase = "persist"
	PhaseDone       Phase = "done"
)

// Progress is reported to the observer as a run advances.
type Progress struct {
	Phase  Phase
	Module string
}

// Observer receives progress updates. It is called from the goroutine
// running the phase and must not block.
type Observer func(Progress)

// Engine runs migrations against one project.
type Engine struct {
	project     *project.Project
	store       Storage
	loader      Loader
	log         Logger
	observer    Observer
	cloneSuffix string
	now         func() time.Time

	report Report
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the run log.
func WithLogger(log Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithLoader sets the loader that confirms replicated modules. Without one
// the continuation runs as soon as replication finishes.
func WithLoader(l Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithObserver registers a progress observer.
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithCloneSuffix sets the suffix of the temporary copy name.
func WithCloneSuffix(suffix string) Option {
	return func(e *Engine) {
		if suffix != "" {
			e.cloneSuffix = suffix
		}
	}
}

// WithClock overrides the timestamp source used by reports.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// New builds an engine for p backed by store.
func New(p *project.Project, store Storage, opts ...Option) *Engine {
	e := &Engine{
		project:     p,
		store:       store,
		log:         nopLogger{},
		cloneSuffix: defaultCloneSuffix,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run migrates every module of the project. Phase 1 runs under an exclusive
// project write; the remaining phases run under a second one once the loader
// announced every replicated module. Failures inside the phases are logged
// and counted in the report; Run itself only fails when there is no project
// or ctx ends before the continuation ran.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	if e.project == nil || e.store == nil {
		return Report{}, ErrNoProject
	}
	e.report = Report{Project: e.project.Name, StartedAt: e.now().UTC()}

	var sub loader.Subscription
	if e.loader != nil {
		sub = e.loader.Subscribe(2*len(e.project.Modules()) + 1)
	}

	var tbl identity.Table
	var paths []string
	e.notify(PhaseReplicate, "")
	e.project.Write(func() error {
		tbl, paths = e.Replicate(identity.New())
		return nil
	})

	continuation := func() error {
		return e.project.Write(func() error {
			e.finish(tbl)
			return nil
		})
	}

	if e.loader == nil {
		err := continuation()
		return e.report, err
	}

	e.notify(PhaseWaiting, "")
	e.loader.Schedule(ctx, paths...)
	w := Await(ctx, sub, paths, e.log, continuation)
	<-w.Done()
	if err := w.Err(); err != nil {
		e.report.Pending = w.Pending()
		e.report.FinishedAt = e.now().UTC()
		return e.report, err
	}
	return e.report, nil
}

// finish runs Phases 2-4 and persists the result. The caller holds the
// project write.
func (e *Engine) finish(tbl identity.Table) {
	e.notify(PhaseLinks, "")
	tbl = e.RepairLinks(tbl)
	if tbl.SchemaCount() > 0 {
		e.notify(PhaseRewrite, "")
		e.RewriteNodes(tbl)
	}
	if tbl.ModelCount() > 0 {
		e.notify(PhaseReferences, "")
		e.RepairReferences(tbl)
	}
	e.notify(PhasePersist, "")
	e.persist()
	e.report.Schemas = tbl.SchemaCount()
	e.report.Models = tbl.ModelCount()
	e.report.FinishedAt = e.now().UTC()
	e.log.Info("migration finished: %s", e.report.Summary())
	e.notify(PhaseDone, "")
}

func (e *Engine) persist() {
	for _, m := range e.project.Modules() {
		if m.Path == "" {
			continue
		}
		if err := e.store.Save(m); err != nil {
			e.log.Error("%s: could not save module: %v", m.Name, err)
			e.report.fail(m.Name, PhasePersist, err)
		}
	}
}

func (e *Engine) notify(phase Phase, module string) {
	if e.observer != nil {
		e.observer(Progress{Phase: phase, Module: module})
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
