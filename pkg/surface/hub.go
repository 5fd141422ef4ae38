// Package surface bridges browser rendering surfaces (the annotation canvas)
// to frame acquisition over WebSocket.
//
// A canvas connects to /ws/surface and answers "capture" requests with the
// frame it is currently displaying. Hub implements frame.Source, so it plugs
// straight into a frame.Acquirer.
package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/protocol"
)

var (
	// ErrCaptureFailed is returned when the surface answers with capture_error.
	ErrCaptureFailed = errors.New("surface: capture failed")

	// ErrSurfaceGone is returned when the surface disconnects mid-capture.
	ErrSurfaceGone = fmt.Errorf("%w: surface disconnected", frame.ErrNoSurface)

	// ErrUnknownSurface is returned when a capture names a surface that is not connected.
	ErrUnknownSurface = fmt.Errorf("%w: surface not connected", frame.ErrNoSurface)
)

// Conn represents a connected surface
type Conn struct {
	ID        string
	Name      string
	Width     int
	Height    int
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu     sync.Mutex
	closed bool // no writes once set; the handler may have released Conn
}

// writeWait bounds a write when the caller has no deadline of its own.
const writeWait = 10 * time.Second

// Send writes msg to the surface. The write fails once deadline passes;
// a zero deadline means writeWait from now.
func (s *Conn) Send(msg *protocol.Message, deadline time.Time) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if deadline.IsZero() {
		deadline = time.Now().Add(writeWait)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSurfaceGone
	}
	if err := s.Conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Conn) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.Conn.Close()
	}
}

type reply struct {
	data []byte
	err  error
}

// pendingCapture is bound to the connection the request went out on, not
// the surface id, which a reconnect can reuse.
type pendingCapture struct {
	conn *Conn
	ch   chan reply
}

// Hub manages WebSocket connections from rendering surfaces
type Hub struct {
	mu       sync.RWMutex
	surfaces map[string]*Conn
	order    []string // connection order, most recent last

	pmu     sync.Mutex
	pending map[string]pendingCapture

	timeout time.Duration
	logger  *slog.Logger

	// Stats
	messagesReceived atomic.Uint64
	capturesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	captureErrors    atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithCaptureTimeout bounds a single capture round trip.
func WithCaptureTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a new surface hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		surfaces: make(map[string]*Conn),
		pending:  make(map[string]pendingCapture),
		timeout:  frame.DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "surface.hub")
	return h
}

// Name identifies the source in acquisition errors.
func (h *Hub) Name() string {
	return "websocket"
}

// RegisterRoutes registers WebSocket routes on a Fiber router
func (h *Hub) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/surface", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/surface", websocket.New(h.handleSurface))
	r.Get("/ws/surface/:id", websocket.New(h.handleSurface))
}

// RegisterAPIRoutes registers surface inspection routes
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	surfaces := api.Group("/surfaces")

	surfaces.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"surfaces": h.Infos(),
			"count":    h.SurfaceCount(),
		})
	})

	surfaces.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// handleSurface handles a surface WebSocket connection
func (h *Hub) handleSurface(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	s := &Conn{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.add(s)
	h.logger.Info("surface connected", "surface", id, "total", h.SurfaceCount())

	defer func() {
		s.close()
		if h.remove(s) {
			h.logger.Info("surface disconnected", "surface", id, "total", h.SurfaceCount())
		} else {
			h.logger.Info("replaced surface connection closed", "surface", id)
		}
		h.failPending(s)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("surface read error", "surface", id, "error", err)
			return
		}

		s.mu.Lock()
		s.LastSeen = time.Now()
		s.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(s, data)
	}
}

func (h *Hub) add(s *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.surfaces[s.ID]; ok && old != s {
		h.dropOrder(s.ID)
		// Unblocks the old handler's read loop; its cleanup only touches
		// captures that were sent on the old socket.
		old.close()
		h.logger.Info("surface reconnected, closing previous connection", "surface", s.ID)
	}
	h.surfaces[s.ID] = s
	h.order = append(h.order, s.ID)
}

// remove drops s and reports whether it was still the registered
// connection for its id.
func (h *Hub) remove(s *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.surfaces[s.ID]; !ok || cur != s {
		return false
	}
	delete(h.surfaces, s.ID)
	h.dropOrder(s.ID)
	return true
}

func (h *Hub) dropOrder(id string) {
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

// handleMessage processes an incoming message from a surface
func (h *Hub) handleMessage(s *Conn, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("surface sent invalid message", "surface", s.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.Name, s.Width, s.Height = hello.Name, hello.Width, hello.Height
		s.mu.Unlock()

	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		fd, err := msg.GetFrameData()
		if err != nil {
			h.logger.Warn("invalid frame payload", "surface", s.ID, "error", err)
			return
		}
		img, err := fd.DecodeFrameData()
		h.resolve(fd.RequestID, reply{data: img, err: err})

	case protocol.TypeCaptureError:
		h.captureErrors.Add(1)
		ce, err := msg.GetCaptureError()
		if err != nil {
			return
		}
		h.resolve(ce.RequestID, reply{err: fmt.Errorf("%w: %s", ErrCaptureFailed, ce.Error)})

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			if err := s.Send(pong, time.Time{}); err != nil {
				h.logger.Debug("pong failed", "surface", s.ID, "error", err)
			}
		}
	}
}

// resolve delivers a reply to the capture waiting on requestID.
// Late or unknown replies are dropped.
func (h *Hub) resolve(requestID string, r reply) {
	h.pmu.Lock()
	p, ok := h.pending[requestID]
	if ok {
		delete(h.pending, requestID)
	}
	h.pmu.Unlock()

	if !ok {
		h.logger.Debug("dropping unmatched capture reply", "request_id", requestID)
		return
	}
	p.ch <- r
}

// failPending fails every capture still waiting on conn.
func (h *Hub) failPending(conn *Conn) {
	h.pmu.Lock()
	var orphans []pendingCapture
	for id, p := range h.pending {
		if p.conn == conn {
			orphans = append(orphans, p)
			delete(h.pending, id)
		}
	}
	h.pmu.Unlock()

	for _, p := range orphans {
		p.ch <- reply{err: ErrSurfaceGone}
	}
}

// CurrentFrame captures from the most recently connected surface.
func (h *Hub) CurrentFrame(ctx context.Context) ([]byte, error) {
	return h.Capture(ctx, "")
}

// Capture asks surfaceID (or the most recent surface when empty) for its
// current frame and waits for the reply, ctx, or the capture timeout.
func (h *Hub) Capture(ctx context.Context, surfaceID string) ([]byte, error) {
	s, err := h.pick(surfaceID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	// A write that fails on an expired deadline poisons the socket for
	// later captures, so don't start one.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("capture from %s: %w", s.ID, err)
	}

	requestID := uuid.NewString()
	ch := make(chan reply, 1)

	h.pmu.Lock()
	h.pending[requestID] = pendingCapture{conn: s, ch: ch}
	h.pmu.Unlock()

	defer func() {
		h.pmu.Lock()
		delete(h.pending, requestID)
		h.pmu.Unlock()
	}()

	msg, err := protocol.NewCaptureMessage(requestID)
	if err != nil {
		return nil, err
	}
	deadline, _ := ctx.Deadline()
	if err := s.Send(msg, deadline); err != nil {
		return nil, fmt.Errorf("send capture to %s: %w", s.ID, err)
	}
	h.capturesSent.Add(1)

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("capture from %s: %w", s.ID, ctx.Err())
	}
}

func (h *Hub) pick(surfaceID string) (*Conn, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if surfaceID != "" {
		s, ok := h.surfaces[surfaceID]
		if !ok {
			return nil, ErrUnknownSurface
		}
		return s, nil
	}
	if len(h.order) == 0 {
		return nil, frame.ErrNoSurface
	}
	return h.surfaces[h.order[len(h.order)-1]], nil
}

// SurfaceCount returns the number of connected surfaces
func (h *Hub) SurfaceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.surfaces)
}

// Pending returns the number of captures awaiting a reply
func (h *Hub) Pending() int {
	h.pmu.Lock()
	defer h.pmu.Unlock()
	return len(h.pending)
}

// Info contains info about a connected surface
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Infos returns info about all connected surfaces, oldest first
func (h *Hub) Infos() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]Info, 0, len(h.order))
	for _, id := range h.order {
		s := h.surfaces[id]
		s.mu.Lock()
		infos = append(infos, Info{
			ID:        s.ID,
			Name:      s.Name,
			Width:     s.Width,
			Height:    s.Height,
			Connected: s.Connected,
			LastSeen:  s.LastSeen,
		})
		s.mu.Unlock()
	}
	return infos
}

// Stats contains hub statistics
type Stats struct {
	SurfaceCount     int    `json:"surface_count"`
	Pending          int    `json:"pending"`
	MessagesReceived uint64 `json:"messages_received"`
	CapturesSent     uint64 `json:"captures_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	CaptureErrors    uint64 `json:"capture_errors"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		SurfaceCount:     h.SurfaceCount(),
		Pending:          h.Pending(),
		MessagesReceived: h.messagesReceived.Load(),
		CapturesSent:     h.capturesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		CaptureErrors:    h.captureErrors.Load(),
	}
}

// Verify Hub implements frame.Source at compile time.
var _ frame.Source = (*Hub)(nil)
