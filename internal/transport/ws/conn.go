package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// connection wraps a WebSocket with serialized writes and the cancel handle
// of the turn it is currently running.
type connection struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	turnMu     sync.Mutex
	turnCancel context.CancelFunc

	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, writeTimeout time.Duration) *connection {
	return &connection{
		id:           uuid.New().String(),
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (c *connection) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}

// WriteJSON sends v as one text frame.
func (c *connection) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(c.deadline())
	return c.ws.WriteJSON(v)
}

func (c *connection) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, c.deadline())
}

// startTurn records cancel as the running turn. It fails if one is already running.
func (c *connection) startTurn(cancel context.CancelFunc) bool {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	if c.turnCancel != nil {
		return false
	}
	c.turnCancel = cancel
	return true
}

func (c *connection) endTurn() {
	c.turnMu.Lock()
	c.turnCancel = nil
	c.turnMu.Unlock()
}

// cancelTurn cancels the running turn and reports whether there was one.
func (c *connection) cancelTurn() bool {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	if c.turnCancel == nil {
		return false
	}
	c.turnCancel()
	return true
}

// Close sends a close frame and closes the socket.
func (c *connection) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), c.deadline())
		c.writeMu.Unlock()
		c.ws.Close()
	})
}
