package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait must exceed the client's heartbeat interval.
	readWait = 5 * time.Minute
)

// Conn serializes writes to a gorilla connection, which allows at most one
// concurrent writer.
type Conn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Wrap takes ownership of conn.
func Wrap(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// WriteJSON sends an event with its data.
func (c *Conn) WriteJSON(event Event, data interface{}) error {
	return c.writeTyped(ResponsePayload{Event: event, Data: data})
}

// WriteError sends an error event.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.writeTyped(ResponsePayload{Event: EventError, Code: code, Error: errMsg})
}

func (c *Conn) writeTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// ReadJSON reads and decodes the next message, with a read deadline.
// Only one goroutine may read.
func (c *Conn) ReadJSON(v interface{}) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	return c.conn.ReadJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
