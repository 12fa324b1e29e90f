package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"arbdesk/internal/history"
	"arbdesk/internal/portfolio"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client is one connected WebSocket consumer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// sendInitialState pushes the current summary and recent chart data so a
// freshly connected dashboard renders without waiting for the next tick.
func (c *client) sendInitialState() {
	open := c.hub.book.OpenPositions()
	entries, summary := portfolio.Summarize(open, c.hub.book.CachedPnl)
	if envelope, err := json.Marshal(map[string]interface{}{
		"type":      "summary",
		"summary":   summary,
		"positions": entries,
	}); err == nil {
		c.hub.sendTo(c, envelope)
	}

	points := c.hub.series.ChartData(history.Range24h, time.Now().UTC())
	if envelope, err := json.Marshal(map[string]interface{}{
		"type":   "chart",
		"range":  history.Range24h,
		"points": points,
	}); err == nil {
		c.hub.sendTo(c, envelope)
	}
}

// writePump drains the send channel to the connection and keeps it alive
// with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and unregisters on disconnect.
func (c *client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
