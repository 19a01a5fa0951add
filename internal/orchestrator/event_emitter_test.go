package orchestrator

import (
	"sync"
	"testing"

	"github.com/foragen/foragen-cli/internal/logging"
)

func TestEventEmitterOrder(t *testing.T) {
	e := NewEventEmitter(logging.NopLogger())

	var got []string
	e.On(func(Event) { got = append(got, "first") })
	e.On(func(Event) { got = append(got, "second") })
	e.Emit(Event{Type: EventStepStart})

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("delivery order = %v", got)
	}
}

func TestEventEmitterUnsubscribe(t *testing.T) {
	e := NewEventEmitter(logging.NopLogger())

	calls := 0
	off := e.On(func(Event) { calls++ })
	e.Emit(Event{Type: EventStepStart})
	off()
	off()
	e.Emit(Event{Type: EventStepEnd})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEventEmitterPanicIsolation(t *testing.T) {
	e := NewEventEmitter(logging.NopLogger())

	reached := false
	e.On(func(Event) { panic("boom") })
	e.On(func(Event) { reached = true })
	e.Emit(Event{Type: EventWorkflowStart})

	if !reached {
		t.Error("listener after a panicking one was not called")
	}
}

func TestEventEmitterSerializesDelivery(t *testing.T) {
	e := NewEventEmitter(nil)

	var mu sync.Mutex
	active, maxActive := 0, 0
	e.On(func(Event) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		mu.Lock()
		active--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(Event{Type: EventVariableUpdate})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("listener ran concurrently: max active = %d", maxActive)
	}
}
