// Package gateway exposes the position book, portfolio summary, and PNL
// chart over HTTP, and streams recorded points and summary updates to
// WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"arbdesk/internal/bus"
	"arbdesk/internal/history"
	"arbdesk/internal/ledger"
	"arbdesk/internal/portfolio"
)

// Hub manages WebSocket clients and fans bus events out to them.
type Hub struct {
	book   *ledger.Book
	series *history.Series

	mu      sync.RWMutex
	clients map[*client]bool

	// OnClientCount is called with the client total after connect/disconnect.
	OnClientCount func(int)
}

// NewHub creates a Hub over the book and series.
func NewHub(book *ledger.Book, series *history.Series) *Hub {
	return &Hub{
		book:    book,
		series:  series,
		clients: make(map[*client]bool),
	}
}

// Run consumes bus events and pushes envelopes to connected clients.
// Blocks until ctx is cancelled or the event channel closes.
func (h *Hub) Run(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

func (h *Hub) handle(ev bus.Event) {
	switch ev.Type {
	case bus.EventPointRecorded:
		if ev.Point == nil {
			return
		}
		envelope, err := json.Marshal(map[string]interface{}{
			"type":  "pnl_point",
			"point": ev.Point,
		})
		if err != nil {
			return
		}
		h.broadcast(envelope)
	case bus.EventPositionOpened, bus.EventPositionClosed, bus.EventBookCleared, bus.EventCacheRefreshed:
		open := h.book.OpenPositions()
		entries, summary := portfolio.Summarize(open, h.book.CachedPnl)
		envelope, err := json.Marshal(map[string]interface{}{
			"type":      "summary",
			"summary":   summary,
			"positions": entries,
		})
		if err != nil {
			return
		}
		h.broadcast(envelope)
	}
}

// broadcast sends data to every client, dropping for full send buffers.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// sendTo delivers data to one client if it is still registered, dropping
// when its buffer is full. Membership is checked under the same lock that
// guards unregistration, so the send cannot race a channel close.
func (h *Hub) sendTo(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// HandleWS registers an upgraded connection and starts its pumps.
func (h *Hub) HandleWS(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	go c.sendInitialState()
	go c.writePump()
	go c.readPump()
}

// removeClient unregisters a client.
func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
