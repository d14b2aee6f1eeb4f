package sequencer

import (
	"sync"

	"modelboot/pkg/types"
)

// Event represents a sequencer lifecycle event.
// Minimal and stable: name + phase and optional fields via key/values.
type Event struct {
	Name   string
	Phase  types.Phase
	Fields map[string]any
}

// Event names, in the order a successful run emits them.
const (
	EventDaemonStarted = "daemon_started"
	EventReady         = "ready"
	EventModelPresent  = "model_present"
	EventModelPull     = "model_pull"
	EventModelPulled   = "model_pulled"
	EventHandoff       = "handoff"
	EventFailed        = "failed"
)

// EventPublisher receives events from the sequencer. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order.
func (p *MemoryPublisher) Names() []string {
	evs := p.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}
