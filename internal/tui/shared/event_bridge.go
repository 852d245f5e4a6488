package shared

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/lndp/internal/copyengine"
)

// eventBuffer keeps the engine from blocking on a busy UI.
const eventBuffer = 256

// EngineEventMsg wraps a copyengine.Event for use as a tea.Msg.
type EngineEventMsg struct {
	Event copyengine.Event
}

// EventBridge adapts copy engine events to bubble tea messages. It
// implements copyengine.EventEmitter; the engine goroutine emits and the UI
// goroutine receives through ListenCmd.
type EventBridge struct {
	mu        sync.Mutex
	eventChan chan tea.Msg
	closed    bool
}

// NewEventBridge creates a new event bridge.
func NewEventBridge() *EventBridge {
	return &EventBridge{eventChan: make(chan tea.Msg, eventBuffer)}
}

// Emit implements copyengine.EventEmitter. Progress events are dropped when
// the buffer is full; every other event is delivered.
func (b *EventBridge) Emit(event copyengine.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	msg := EngineEventMsg{Event: event}

	switch event.(type) {
	case copyengine.FileProgress, copyengine.SpeedUpdate, copyengine.QueueProgress:
		select {
		case b.eventChan <- msg:
		default:
		}
	default:
		b.eventChan <- msg
	}
}

// Subscribe returns the event channel.
func (b *EventBridge) Subscribe() <-chan tea.Msg {
	return b.eventChan
}

// ListenCmd returns a tea.Cmd that blocks until the next event.
func (b *EventBridge) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b.eventChan
		if !ok {
			return nil
		}

		return msg
	}
}

// Close closes the event channel. Later Emit calls are ignored.
func (b *EventBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.eventChan)
	}
}
