// Package realtime consumes push channel events and splices them into
// the live feed.
package realtime

import (
	"bytes"
	"context"
	gosync "sync"

	"github.com/goccy/go-json"
)

// DefaultEvent is the event name used for frames that do not carry one.
const DefaultEvent = "notification"

// Handler receives the raw frame of one push event.
type Handler func(data []byte)

// Channel is a push channel. The returned function unsubscribes h.
type Channel interface {
	Subscribe(event string, h Handler) (func(), error)
}

// Runner is implemented by channels that own a connection loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Dispatcher is an in-process handler registry. Transports embed it and
// feed it the frames they read.
type Dispatcher struct {
	mu       gosync.RWMutex
	next     uint64
	handlers map[string]map[uint64]Handler
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]map[uint64]Handler)}
}

// Subscribe implements Channel.
func (d *Dispatcher) Subscribe(event string, h Handler) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	id := d.next
	if d.handlers[event] == nil {
		d.handlers[event] = make(map[uint64]Handler)
	}
	d.handlers[event][id] = h

	var once gosync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers[event], id)
		})
	}, nil
}

// Dispatch delivers data to every handler of event and returns how many
// handlers received it.
func (d *Dispatcher) Dispatch(event string, data []byte) int {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[event]))
	for _, h := range d.handlers[event] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
	return len(hs)
}

// eventOf reads the "event" member of a frame, falling back to def.
func eventOf(data []byte, def string) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return def
	}
	var probe struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Event == "" {
		return def
	}
	return probe.Event
}
