// Package eventbus fans out state-change notifications from producers that
// have no other path back to the view model. The tailer's updates already
// flow to the view model through its own channel (tailer.Tailer.Events);
// the bus exists for process.Controller's background liveness poll, which
// runs on its own ticker goroutine and would otherwise have no way to wake
// the bubbletea loop when it detects a stale lock between key presses.
package eventbus

import "sync"

// Event names the kind of change being broadcast; Payload carries
// whatever data is relevant to that kind (a process.State, or nothing at
// all for "state changed, re-render").
type Event struct {
	Name    string
	Payload interface{}
}

// EventProcessState is broadcast by process.Controller on every state
// transition, including ones discovered by its background poll rather
// than a direct Start/Stop/Resume call.
const EventProcessState = "process_state"

// Handler reacts to a broadcast event.
type Handler func(Event)

// Publisher abstracts event broadcast + subscription so a producer with no
// request/response relationship to its consumer (the process controller's
// background poll) doesn't need a concrete reference to the view model.
type Publisher interface {
	Subscribe(id string, handler Handler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// Bus is the concrete, mutex-protected Publisher used throughout Ralph.
// Broadcast fans out synchronously in the caller's goroutine — the view
// model is expected to queue work rather than block in its handler.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Subscribe registers handler under id, replacing any previous
// subscription with that id.
func (b *Bus) Subscribe(id string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

// Unsubscribe removes the handler registered under id, if any.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Broadcast delivers event to every current subscriber. Subscribers are
// snapshotted under the read lock so a handler may safely Subscribe or
// Unsubscribe without deadlocking.
func (b *Bus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
