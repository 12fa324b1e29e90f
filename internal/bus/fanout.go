// Package bus provides an explicit change-notification channel between the
// position book, the history recorder, and downstream consumers (gateway,
// persistence). Subscribers receive events on buffered channels; a full
// channel drops the event for that subscriber so a slow consumer can never
// block a mutation path.
package bus

import (
	"log"
	"sync"

	"arbdesk/internal/model"
)

// EventType identifies what changed.
type EventType string

const (
	EventPositionOpened EventType = "position_opened"
	EventPositionClosed EventType = "position_closed"
	EventBookCleared    EventType = "book_cleared"
	EventCacheRefreshed EventType = "cache_refreshed"
	EventPointRecorded  EventType = "point_recorded"
)

// Event is a single change notification.
type Event struct {
	Type       EventType
	PositionID string              // set for position events
	Point      *model.PnlDataPoint // set for EventPointRecorded
}

// FanOut broadcasts events to N subscriber channels.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan Event
	bufSize int
	closed  bool

	// OnDrop is called when an event is dropped for a subscriber.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for subscriber channels.
func New(bufSize int) *FanOut {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &FanOut{bufSize: bufSize}
}

// Subscribe creates and returns a new subscriber channel.
func (f *FanOut) Subscribe() <-chan Event {
	ch := make(chan Event, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Publish delivers an event to all subscribers, dropping for any whose
// channel is full.
func (f *FanOut) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for i, ch := range f.outputs {
		select {
		case ch <- ev:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				log.Printf("[bus] subscriber %d full, dropping %s event", i, ev.Type)
			}
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.outputs {
		close(ch)
	}
}
