package loader

import (
	"strings"
	"time"
)

// EventType classifies loader notifications.
type EventType string

const (
	// EventLoadStarted is published when a worker picks up a descriptor.
	EventLoadStarted EventType = "load_started"
	// EventModuleAdded is published once the module behind a descriptor is
	// part of the project.
	EventModuleAdded EventType = "module_added"
	// EventLoadFailed is published when a descriptor could not be loaded.
	EventLoadFailed EventType = "load_failed"
)

// Event is a module loading notification.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Topic  string    `json:"topic"`
	Path   string    `json:"path"`
	Module string    `json:"module,omitempty"`
	Err    string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// Critical reports whether the event settles a pending path.
func (e Event) Critical() bool {
	return e.Type == EventModuleAdded || e.Type == EventLoadFailed
}

func normalizeTopic(topic string) string {
	return strings.TrimSpace(strings.ToLower(topic))
}
