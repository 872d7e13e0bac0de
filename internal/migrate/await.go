package migrate

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kingrea/modmigrate/internal/loader"
)

// Waiter tracks a set of descriptor paths that must be announced before a
// continuation runs.
type Waiter struct {
	mu      sync.Mutex
	pending map[string]struct{}
	done    chan struct{}
	err     error
}

// Await starts a goroutine that consumes sub until every path has been
// announced as available, then closes sub and runs cont. A failed load keeps
// its path pending, so the continuation never fires for that run; cancelling
// ctx stops the wait and leaves the continuation unrun.
func Await(ctx context.Context, sub loader.Subscription, paths []string, log Logger, cont func() error) *Waiter {
	if log == nil {
		log = nopLogger{}
	}
	w := &Waiter{pending: map[string]struct{}{}, done: make(chan struct{})}
	for _, path := range paths {
		w.pending[filepath.Clean(path)] = struct{}{}
	}
	go func() {
		defer close(w.done)
		for w.remaining() > 0 {
			select {
			case <-ctx.Done():
				sub.Close()
				w.setErr(fmt.Errorf("migrate: stopped waiting for %d modules: %w", w.remaining(), ctx.Err()))
				return
			case event, ok := <-sub.Events:
				if !ok {
					w.setErr(fmt.Errorf("migrate: module notifications closed with %d modules pending", w.remaining()))
					return
				}
				w.observe(event, log)
			}
		}
		sub.Close()
		w.setErr(cont())
	}()
	return w
}

func (w *Waiter) observe(event loader.Event, log Logger) {
	path := filepath.Clean(event.Path)
	w.mu.Lock()
	_, expected := w.pending[path]
	w.mu.Unlock()
	if !expected {
		return
	}
	switch event.Type {
	case loader.EventModuleAdded:
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	case loader.EventLoadFailed:
		log.Error("module at %s did not load, migration cannot continue: %s", path, event.Err)
	}
}

func (w *Waiter) remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Waiter) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Done is closed once the continuation returned or the wait was abandoned.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

// Err returns the continuation's error or the reason the wait ended early.
// It is only meaningful after Done is closed.
func (w *Waiter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Pending returns the paths not yet announced, sorted.
func (w *Waiter) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pending))
	for path := range w.pending {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
