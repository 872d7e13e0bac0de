// Package loader brings module descriptors into a live project in the
// background and announces each one on a Router once it is available.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/modmigrate/internal/project"
)

// Topic is the router topic loader events are published on.
const Topic = "modules"

const defaultWorkers = 4

// Source reads a module from its descriptor.
type Source interface {
	Load(path string) (*project.Module, error)
}

// Loader loads descriptors with a bounded set of workers.
type Loader struct {
	project *project.Project
	source  Source
	router  *Router
	logger  Logger
	workers int
	now     func() time.Time

	seq atomic.Uint64
	wg  sync.WaitGroup
}

// Option customizes a Loader.
type Option func(*Loader)

// WithWorkers bounds how many descriptors load concurrently.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLogger injects the run log.
func WithLogger(logger Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithRouter shares an existing router.
func WithRouter(router *Router) Option {
	return func(l *Loader) {
		if router != nil {
			l.router = router
		}
	}
}

// New builds a loader feeding p from source.
func New(p *project.Project, source Source, opts ...Option) *Loader {
	l := &Loader{
		project: p,
		source:  source,
		workers: defaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.router == nil {
		l.router = NewRouter(RouterLogger(l.logger))
	}
	return l
}

// Router returns the router events are published on.
func (l *Loader) Router() *Router {
	return l.router
}

// Subscribe registers for module events with room for capacity undelivered
// events.
func (l *Loader) Subscribe(capacity int) Subscription {
	return l.router.Subscribe(Topic, capacity)
}

// Schedule loads the given descriptors in the background. Descriptors whose
// module is already part of the project are announced without reloading.
// Schedule returns immediately; Wait blocks until every scheduled batch is
// done.
func (l *Loader) Schedule(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	batch := append([]string(nil), paths...)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.workers)
		for _, path := range batch {
			path := filepath.Clean(path)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				l.loadOne(path)
				return nil
			})
		}
		if err := g.Wait(); err != nil && l.logger != nil {
			l.logger.Warn("loader: batch stopped: %v", err)
		}
	}()
}

// Wait blocks until all scheduled batches finish.
func (l *Loader) Wait() {
	l.wg.Wait()
}

func (l *Loader) loadOne(path string) {
	l.publish(Event{Type: EventLoadStarted, Path: path})
	if m, ok := l.project.ModuleByPath(path); ok {
		l.publish(Event{Type: EventModuleAdded, Path: path, Module: m.Name})
		return
	}
	m, err := l.source.Load(path)
	if err == nil {
		err = l.project.Write(func() error {
			if existing, ok := l.project.ModuleByPath(path); ok {
				m = existing
				return nil
			}
			return l.project.AddModule(m)
		})
	}
	if err != nil {
		if l.logger != nil {
			l.logger.Error("loader: %s: %v", path, err)
		}
		l.publish(Event{Type: EventLoadFailed, Path: path, Err: err.Error()})
		return
	}
	if l.logger != nil {
		l.logger.Info("loader: module %s available from %s", m.Name, path)
	}
	l.publish(Event{Type: EventModuleAdded, Path: path, Module: m.Name})
}

func (l *Loader) publish(event Event) {
	event.ID = fmt.Sprintf("load-%d", l.seq.Add(1))
	event.Topic = Topic
	event.Time = l.now().UTC()
	l.router.Route(event)
}
