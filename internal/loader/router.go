package loader

import (
	"sync"
)

const (
	defaultCapacity = 100
	defaultBacklog  = 256
	seenWindow      = 1024
)

// Logger receives diagnostic messages from the router and the loader.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// RouterLogger reports dropped events to logger.
func RouterLogger(logger Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// RouterCapacity sets the queue length used when Subscribe is called with a
// capacity <= 0.
func RouterCapacity(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// RouterBacklog bounds how many events a topic keeps while nobody listens.
func RouterBacklog(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.backlogLimit = n
		}
	}
}

// Router fans loader events out to per-topic subscribers. Events routed to a
// topic nobody listens on are kept (bounded) and replayed to the first
// subscriber. An event id is delivered at most once.
type Router struct {
	mu           sync.Mutex
	topics       map[string]*topic
	seen         idWindow
	capacity     int
	backlogLimit int
	logger       Logger
}

type topic struct {
	subs    []*subscriber
	backlog []Event
}

// Subscription is one listener on a topic.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close stops delivery and closes Events. Safe to call more than once.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter returns an empty router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		topics:       map[string]*topic{},
		seen:         newIDWindow(seenWindow),
		capacity:     defaultCapacity,
		backlogLimit: defaultBacklog,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Subscribe listens on name. Any backlog is handed over before live events.
func (r *Router) Subscribe(name string, capacity int) Subscription {
	if capacity <= 0 {
		capacity = r.capacity
	}
	key := normalizeTopic(name)
	sub := &subscriber{ch: make(chan Event, capacity), logger: r.logger}

	r.mu.Lock()
	t := r.topic(key)
	t.subs = append(t.subs, sub)
	replay := t.backlog
	t.backlog = nil
	r.mu.Unlock()

	for _, event := range replay {
		sub.deliver(event)
	}
	return Subscription{Events: sub.ch, cancel: func() { r.unsubscribe(key, sub) }}
}

// Route delivers event to the subscribers of its topic.
func (r *Router) Route(event Event) {
	key := normalizeTopic(event.Topic)
	if key == "" {
		return
	}
	r.mu.Lock()
	if event.ID != "" && !r.seen.add(event.ID) {
		r.mu.Unlock()
		return
	}
	t := r.topic(key)
	if len(t.subs) == 0 {
		if len(t.backlog) >= r.backlogLimit {
			t.backlog = t.backlog[1:]
			if r.logger != nil {
				r.logger.Warn("loader: backlog for %s full (%d), oldest event dropped", key, r.backlogLimit)
			}
		}
		t.backlog = append(t.backlog, event)
		r.mu.Unlock()
		return
	}
	subs := append([]*subscriber(nil), t.subs...)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(event)
	}
}

// topic returns the entry for key, creating it. r.mu is held.
func (r *Router) topic(key string) *topic {
	t, ok := r.topics[key]
	if !ok {
		t = &topic{}
		r.topics[key] = t
	}
	return t
}

func (r *Router) unsubscribe(key string, sub *subscriber) {
	r.mu.Lock()
	if t, ok := r.topics[key]; ok {
		for i, s := range t.subs {
			if s == sub {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	sub.close()
}

// idWindow remembers the last n ids.
type idWindow struct {
	ids   map[string]struct{}
	order []string
	n     int
}

func newIDWindow(n int) idWindow {
	return idWindow{ids: make(map[string]struct{}, n), n: n}
}

// add records id and reports whether it was new.
func (w *idWindow) add(id string) bool {
	if _, dup := w.ids[id]; dup {
		return false
	}
	w.ids[id] = struct{}{}
	w.order = append(w.order, id)
	if len(w.order) > w.n {
		delete(w.ids, w.order[0])
		w.order = w.order[1:]
	}
	return true
}

// subscriber owns a bounded queue. deliver never blocks; when the queue is
// full a critical event evicts the oldest non-critical one. deliver and close
// share mu, so nothing is sent on a closed channel.
type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	logger Logger
	closed bool
}

func (s *subscriber) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- event:
			return
		default:
		}
		var head Event
		select {
		case head = <-s.ch:
		default:
			continue
		}
		if head.Critical() && !event.Critical() {
			s.ch <- head
			s.dropped(event)
			return
		}
		s.dropped(head)
	}
}

func (s *subscriber) dropped(event Event) {
	if s.logger != nil {
		s.logger.Warn("loader: queue full, dropped %s for %s", event.Type, event.Path)
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
