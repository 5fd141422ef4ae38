package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-infer-trigger/pkg/protocol"
)

// InboundHandler receives messages sent by clients.
type InboundHandler func(data []byte)

// Hub fans notifications out to websocket viewers. Only Run touches the
// client set's membership; mu guards reads from other goroutines.
type Hub struct {
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	onMessage atomic.Pointer[InboundHandler]
	running   atomic.Bool
	dropped   atomic.Uint64
}

// New creates a hub. It does nothing until Run is called.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnMessage sets the handler for messages sent by clients
func (h *Hub) OnMessage(fn InboundHandler) {
	h.onMessage.Store(&fn)
}

// Run owns the client set until ctx is done. On return every client's send
// queue is closed, which ends its connection.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanout(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("viewer connected", "total", n)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("viewer disconnected", "remaining", n)
}

// fanout queues msg for every client. A client whose queue is full is
// dropped rather than stalling the others.
func (h *Hub) fanout(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.dropped.Add(1)
			h.logger.Warn("dropped slow viewer", "queued", len(c.send))
		}
	}
}

func (h *Hub) stop() {
	h.running.Store(false)
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c unless the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(data []byte) {
	if fn := h.onMessage.Load(); fn != nil && *fn != nil {
		(*fn)(data)
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastProtocol broadcasts a protocol envelope
func (h *Hub) BroadcastProtocol(msg *protocol.Message) error {
	m, err := FromProtocol(msg)
	if err != nil {
		return err
	}
	h.Broadcast(m)
	return nil
}

// BroadcastBinary broadcasts binary data
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many slow clients were disconnected
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
