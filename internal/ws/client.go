package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Client represents a single signaling connection. UserID stays zero until
// the connection registers; it is only written from the connection's own
// read loop.
type Client struct {
	ID     string
	UserID uint
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(buffer int) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, buffer),
	}
}

// Enqueue puts one event frame on the send queue. The frame is dropped when
// the client is closed or its buffer is full; a slow reader never blocks the
// sender.
func (c *Client) Enqueue(event string, data interface{}) bool {
	frame, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
