// Package web exposes the inference trigger over HTTP and WebSocket: the
// button endpoint, status, recent notifications and the canvas bridge.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-infer-trigger/pkg/hub"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
	"github.com/teslashibe/go-infer-trigger/pkg/protocol"
	"github.com/teslashibe/go-infer-trigger/pkg/trigger"
)

// DefaultHistory is how many notifications the server keeps.
const DefaultHistory = 100

// Triggerer starts inference runs. *trigger.Orchestrator implements it.
type Triggerer interface {
	Trigger(ctx context.Context, scale float64) *trigger.Run
	GetStats() trigger.Stats
}

// Surfaces is the canvas bridge. *surface.Hub implements it.
type Surfaces interface {
	RegisterRoutes(r fiber.Router)
	RegisterAPIRoutes(api fiber.Router)
	SurfaceCount() int
}

// Status is the body of GET /api/status
type Status struct {
	InFlight int                  `json:"in_flight"`
	Surfaces int                  `json:"surfaces"`
	Endpoint string               `json:"endpoint,omitempty"`
	Stats    trigger.Stats        `json:"stats"`
	Last     *notify.Notification `json:"last,omitempty"`
}

// Server is the trigger web server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	trigMu sync.RWMutex
	trig   Triggerer

	surfaces Surfaces
	endpoint string

	// Notification buffer (last DefaultHistory entries)
	history    []notify.Notification
	historyMax int
	historyMu  sync.RWMutex

	// Hub for websocket broadcast
	notifyHub *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSurfaces mounts the canvas bridge routes.
func WithSurfaces(sf Surfaces) Option {
	return func(s *Server) { s.surfaces = sf }
}

// WithEndpoint sets the inference URL reported by /api/status.
func WithEndpoint(endpoint string) Option {
	return func(s *Server) { s.endpoint = endpoint }
}

// WithHistory sets how many notifications are kept.
func WithHistory(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.historyMax = n
		}
	}
}

// NewServer creates a new web server listening on addr
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:       addr,
		logger:     slog.Default(),
		historyMax: DefaultHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.history = make([]notify.Notification, 0, s.historyMax)
	s.notifyHub = hub.New("notifications", s.logger)
	s.notifyHub.OnMessage(s.handleInbound)

	app := fiber.New(fiber.Config{
		AppName:               "infer-trigger",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Post("/infer", s.handleInfer)
	api.Get("/status", s.handleStatus)
	api.Get("/notifications", s.handleNotifications)
	if s.surfaces != nil {
		s.surfaces.RegisterAPIRoutes(api)
	}

	// WebSocket routes
	app.Use("/ws/notifications", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/notifications", websocket.New(s.handleNotificationsWS))
	if s.surfaces != nil {
		s.surfaces.RegisterRoutes(app)
	}

	s.app = app
	return s
}

// SetTrigger attaches the orchestrator. The server is usually built first
// because it is also the orchestrator's notification sink.
func (s *Server) SetTrigger(t Triggerer) {
	s.trigMu.Lock()
	s.trig = t
	s.trigMu.Unlock()
}

func (s *Server) trigger() Triggerer {
	s.trigMu.RLock()
	defer s.trigMu.RUnlock()
	return s.trig
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the notification hub and serves on the configured address
// until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the notification hub and serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.notifyHub.Run(ctx)

	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	s.logger.Info("web server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Notify records n and broadcasts it to connected viewers.
func (s *Server) Notify(_ context.Context, n notify.Notification) {
	s.historyMu.Lock()
	s.history = append(s.history, n)
	if len(s.history) > s.historyMax {
		s.history = s.history[1:]
	}
	s.historyMu.Unlock()

	msg, err := protocol.NewNotificationMessage(toProtocol(n))
	if err != nil {
		s.logger.Warn("encode notification", "error", err)
		return
	}
	s.notifyHub.BroadcastProtocol(msg)
}

// Notifications returns the recent notifications, oldest first
func (s *Server) Notifications() []notify.Notification {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	out := make([]notify.Notification, len(s.history))
	copy(out, s.history)
	return out
}

// Status returns the current trigger state
func (s *Server) Status() Status {
	st := Status{Endpoint: s.endpoint}

	if t := s.trigger(); t != nil {
		st.Stats = t.GetStats()
		st.InFlight = st.Stats.InFlight
	}
	if s.surfaces != nil {
		st.Surfaces = s.surfaces.SurfaceCount()
	}

	s.historyMu.RLock()
	if len(s.history) > 0 {
		last := s.history[len(s.history)-1]
		st.Last = &last
	}
	s.historyMu.RUnlock()
	return st
}

// GetNotifyHub returns the notification hub for external use
func (s *Server) GetNotifyHub() *hub.Hub {
	return s.notifyHub
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func toProtocol(n notify.Notification) protocol.NotificationData {
	return protocol.NotificationData{
		Kind:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		TriggerID: n.TriggerID,
		ErrorKind: n.ErrorKind,
		Payload:   n.Payload,
	}
}

// Verify Server implements notify.Sink at compile time.
var _ notify.Sink = (*Server)(nil)
