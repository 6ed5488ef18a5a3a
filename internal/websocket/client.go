package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one staff member's feed connection.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	personID int64
	send     chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, personID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		personID: personID,
		send:     make(chan []byte, sendBufferSize),
	}
}

// offer queues frame unless the client's buffer is full.
func (c *Client) offer(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Run registers the client and pumps messages until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// The feed is one-way; CloseRead discards client frames and cancels ctx
	// when the peer goes away.
	ctx = c.conn.CloseRead(ctx)
	c.writePump(ctx)
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "server shutting down")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
