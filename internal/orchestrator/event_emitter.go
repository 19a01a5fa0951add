package orchestrator

import (
	"fmt"
	"sync"

	"github.com/foragen/foragen-cli/internal/logging"
)

// EventEmitter is a callback registry. Events are delivered synchronously
// to listeners in registration order. Emission is serialized, so listeners
// never run concurrently even when parallel steps emit at the same time.
// A panicking listener is logged and skipped; it never aborts a run.
type EventEmitter struct {
	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64

	// emitMu serializes delivery.
	emitMu sync.Mutex
	logger *logging.Logger
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// NewEventEmitter creates an emitter logging listener failures to logger.
func NewEventEmitter(logger *logging.Logger) *EventEmitter {
	return &EventEmitter{logger: logger}
}

// On registers a listener and returns a function that removes it.
// The returned function is idempotent.
func (e *EventEmitter) On(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *EventEmitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to every listener registered at call time.
func (e *EventEmitter) Emit(event Event) {
	e.mu.Lock()
	snapshot := make([]listenerEntry, len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	for _, l := range snapshot {
		e.deliver(l.fn, event)
	}
}

func (e *EventEmitter) deliver(fn Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn(fmt.Errorf("%v", r), fmt.Sprintf("event listener panicked on %s", event.Type))
		}
	}()
	fn(event)
}
