package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client bridges one websocket connection and the registry. Outbound
// messages go through a buffered channel drained by writePump; a full buffer
// means the consumer cannot keep up and the connection is torn down.
type Client struct {
	id     uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	logger *zap.Logger
}

func newClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		id:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID implements registry.Conn.
func (c *Client) ID() uuid.UUID { return c.id }

// Enqueue implements registry.Conn. It never blocks: a message that does not
// fit the buffer closes the connection, and cleanup happens in the read loop.
func (c *Client) Enqueue(msg []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.shutdown()
		return false
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
