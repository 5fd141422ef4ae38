package web

import (
	"context"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-infer-trigger/pkg/protocol"
)

// InferRequest is the optional body of POST /api/infer
type InferRequest struct {
	Scale *float64 `json:"scale"`
}

// handleInfer presses the button
func (s *Server) handleInfer(c *fiber.Ctx) error {
	t := s.trigger()
	if t == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "trigger not configured",
		})
	}

	var req InferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	scale := 0.0
	if req.Scale != nil {
		scale = *req.Scale
		if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "scale must be a finite positive number",
			})
		}
	}

	run := t.Trigger(c.UserContext(), scale)

	if c.Query("wait") == "true" {
		n, err := run.Wait(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"trigger_id": run.ID,
				"error":      err.Error(),
			})
		}
		return c.JSON(n)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"trigger_id": run.ID,
		"scale":      run.Scale,
	})
}

// handleStatus returns the current trigger state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleNotifications returns recent notifications
func (s *Server) handleNotifications(c *fiber.Ctx) error {
	return c.JSON(s.Notifications())
}

// handleNotificationsWS streams notifications to a viewer
func (s *Server) handleNotificationsWS(c *websocket.Conn) {
	// Send current status before the hub's write pump owns the connection
	st := s.Status()
	if msg, err := protocol.NewStatusMessage(st.InFlight, st.Surfaces, st.Endpoint); err == nil {
		if data, err := msg.Bytes(); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	s.notifyHub.Serve(c)
}

// handleInbound handles messages sent by viewers
func (s *Server) handleInbound(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("ignoring viewer message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeTrigger:
		t := s.trigger()
		if t == nil {
			return
		}
		req, err := msg.GetTriggerData()
		if err != nil || req.Scale < 0 {
			s.logger.Debug("invalid trigger message", "error", err)
			return
		}
		run := t.Trigger(context.Background(), req.Scale)
		s.logger.Debug("trigger from viewer", "trigger_id", run.ID)
	}
}
