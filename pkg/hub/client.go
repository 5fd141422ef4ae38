package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection limits for notification viewers.
const (
	writeWait      = 10 * time.Second
	idleTimeout    = 60 * time.Second
	keepalive      = idleTimeout * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client is one viewer connection. The hub owns its send queue and closes
// it on leave, on slow delivery, or when the hub stops.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	joined time.Time
	done   chan struct{} // closed when writeLoop returns
}

// NewClient creates a client and registers it with the hub.
// It returns nil when the hub is no longer running.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		joined: time.Now(),
		done:   make(chan struct{}),
	}
	if !hub.join(c) {
		return nil
	}
	return c
}

// Serve registers conn and pumps messages until it closes.
// Use it as the body of a websocket handler.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := NewClient(h, conn)
	if c == nil {
		h.logger.Debug("rejecting viewer, hub stopped", "remote", conn.RemoteAddr().String())
		conn.Close()
		return
	}
	c.Run()
	h.logger.Debug("viewer session ended",
		"remote", conn.RemoteAddr().String(),
		"duration", time.Since(c.joined).Round(time.Millisecond),
	)
}

// Run writes in the background and reads until the connection closes.
// It returns only after the writer has stopped: the websocket handler
// recycles conn as soon as Run returns.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
	<-c.done
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func() { c.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		extend()
		// Viewers only send JSON commands; binary frames are ignored.
		if mt == websocket.TextMessage {
			c.hub.dispatch(data)
		}
	}
}

// writeLoop is the only writer on the connection.
func (c *Client) writeLoop() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(msg.frameType(), msg.Data); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(mt int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(mt, data)
}

func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
