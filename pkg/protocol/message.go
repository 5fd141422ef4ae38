// Package protocol defines the WebSocket message types exchanged with the
// annotation canvas and with notification viewers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → Surface messages
	TypeCapture MessageType = "capture" // Request the current frame

	// Surface → Server messages
	TypeHello        MessageType = "hello"         // Surface announces itself
	TypeFrame        MessageType = "frame"         // Captured frame
	TypeCaptureError MessageType = "capture_error" // Surface could not render a frame

	// Server → Viewer messages
	TypeNotification MessageType = "notification" // Inference outcome
	TypeStatus       MessageType = "status"        // Trigger/surface status

	// Viewer → Server messages
	TypeTrigger MessageType = "trigger" // Button pressed

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the envelope every frame on the wire is wrapped in.
// Data is decoded lazily by the typed getters.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // unix ms
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps payload in an envelope stamped with the current time.
// A nil payload leaves Data empty.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s payload: %w", msgType, err)
	}
	msg.Data = raw
	return msg, nil
}

// ParseData decodes Data into v. An empty payload leaves v untouched.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Bytes encodes the envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes an envelope. Messages without a type are rejected.
func ParseMessage(data []byte) (*Message, error) {
	msg := new(Message)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("protocol: invalid message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: invalid message: missing type")
	}
	return msg, nil
}

// Surface payloads.

// CaptureRequest asks a surface for the frame it is currently displaying.
type CaptureRequest struct {
	RequestID string `json:"request_id"`
}

// HelloData is sent by a surface right after it connects.
type HelloData struct {
	Name   string `json:"name,omitempty"`   // e.g. "cvat-canvas"
	Width  int    `json:"width,omitempty"`  // Viewport size
	Height int    `json:"height,omitempty"`
}

// FrameData answers a CaptureRequest.
type FrameData struct {
	RequestID string `json:"request_id"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Format    string `json:"format"` // "png", "jpeg"
	Data      string `json:"data"`   // base64 encoded
}

// CaptureErrorData reports that a surface could not produce a frame.
type CaptureErrorData struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// Viewer payloads.

// NotificationData carries one inference outcome to viewers.
type NotificationData struct {
	Kind      string         `json:"kind"` // "success", "failure"
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	TriggerID string         `json:"trigger_id,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// StatusData summarises the trigger state.
type StatusData struct {
	InFlight int    `json:"in_flight"`
	Surfaces int    `json:"surfaces"`
	Endpoint string `json:"endpoint,omitempty"`
}

// TriggerData is sent by a viewer to start an inference.
// Zero scale means "use the configured default".
type TriggerData struct {
	Scale float64 `json:"scale,omitempty"`
}

// Bidirectional payloads.

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
