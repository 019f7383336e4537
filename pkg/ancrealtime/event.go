package ancrealtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// EventKind names an event delivered to listeners.
type EventKind string

const (
	// EventConnected fires after the connection is established, including
	// after an automatic reconnect.
	EventConnected EventKind = "connected"

	// EventDisconnected fires when the connection ends. Event.Err holds the
	// reason, or nil after Disconnect.
	EventDisconnected EventKind = "disconnected"

	// EventProcessedAudio carries processed audio pushed by the server.
	EventProcessedAudio EventKind = "processed_audio"

	// EventMetricsUpdate carries session metrics pushed by the server.
	EventMetricsUpdate EventKind = "metrics_update"

	// EventError carries an error pushed by the server in Data, or a local
	// failure such as exhausted reconnection in Err.
	EventError EventKind = "error"
)

// Kinds lists every event kind listeners may register for.
var Kinds = []EventKind{
	EventConnected,
	EventDisconnected,
	EventProcessedAudio,
	EventMetricsUpdate,
	EventError,
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Event is delivered to listeners.
type Event struct {
	Kind EventKind

	// Data is the server payload, or nil for connection events.
	Data json.RawMessage

	// Err is set for disconnects with a cause and for local errors.
	Err error
}

// Decode unmarshals Data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return errors.New("ancrealtime: event has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("ancrealtime: decode %s: %w", e.Kind, err)
	}
	return nil
}

// ProcessedAudio is the usual payload of EventProcessedAudio.
type ProcessedAudio struct {
	SessionID  string          `json:"session_id"`
	AudioData  []byte          `json:"audio_data"`
	ChunkIndex int             `json:"chunk_index"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
}

// Listener receives events. Listeners run on the client's reader goroutine
// and should return quickly.
type Listener func(Event)

// ListenerID identifies a registered listener.
type ListenerID string

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// dispatcher fans events out to listeners in registration order. A
// panicking listener is recovered and logged; the remaining listeners still
// run.
type dispatcher struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[EventKind][]listenerEntry
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger:    logger,
		listeners: make(map[EventKind][]listenerEntry),
	}
}

func (d *dispatcher) on(kind EventKind, fn Listener) ListenerID {
	if !kind.Valid() || fn == nil {
		return ""
	}
	id := ListenerID(uuid.NewString())
	d.mu.Lock()
	d.listeners[kind] = append(d.listeners[kind], listenerEntry{id: id, fn: fn})
	d.mu.Unlock()
	return id
}

func (d *dispatcher) off(id ListenerID) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for kind, entries := range d.listeners {
		for i, e := range entries {
			if e.id == id {
				d.listeners[kind] = slices.Delete(slices.Clone(entries), i, i+1)
				return true
			}
		}
	}
	return false
}

func (d *dispatcher) emit(ev Event) {
	d.mu.RLock()
	entries := d.listeners[ev.Kind]
	d.mu.RUnlock()

	for _, e := range entries {
		d.call(e, ev)
	}
}

func (d *dispatcher) call(e listenerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("realtime listener panicked", "event", ev.Kind, "listener", e.id, "panic", r)
		}
	}()
	e.fn(ev)
}
