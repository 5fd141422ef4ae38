package protocol

import (
	"encoding/base64"
	"fmt"
	"time"
)

// NewCaptureMessage creates a capture request for the given request id
func NewCaptureMessage(requestID string) (*Message, error) {
	return NewMessage(TypeCapture, CaptureRequest{RequestID: requestID})
}

// NewHelloMessage creates a surface hello message
func NewHelloMessage(name string, width, height int) (*Message, error) {
	return NewMessage(TypeHello, HelloData{Name: name, Width: width, Height: height})
}

// NewFrameMessage creates a frame reply from raw image data
func NewFrameMessage(requestID string, width, height int, format string, imageData []byte) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		RequestID: requestID,
		Width:     width,
		Height:    height,
		Format:    format,
		Data:      base64.StdEncoding.EncodeToString(imageData),
	})
}

// NewCaptureErrorMessage creates a capture failure reply
func NewCaptureErrorMessage(requestID, reason string) (*Message, error) {
	return NewMessage(TypeCaptureError, CaptureErrorData{RequestID: requestID, Error: reason})
}

// NewNotificationMessage creates a notification message
func NewNotificationMessage(n NotificationData) (*Message, error) {
	return NewMessage(TypeNotification, n)
}

// NewStatusMessage creates a status message
func NewStatusMessage(inFlight, surfaces int, endpoint string) (*Message, error) {
	return NewMessage(TypeStatus, StatusData{InFlight: inFlight, Surfaces: surfaces, Endpoint: endpoint})
}

// NewTriggerMessage creates a trigger message
func NewTriggerMessage(scale float64) (*Message, error) {
	return NewMessage(TypeTrigger, TriggerData{Scale: scale})
}

// NewPingMessage creates a keepalive probe stamped with the current time.
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage answers a ping sent at pingTS.
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{ID: id, PingTS: pingTS, PongTS: pongTS, LatencyMs: pongTS - pingTS})
}

func decode[T any](m *Message) (*T, error) {
	v := new(T)
	if err := m.ParseData(v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetFrameData returns the frame payload.
func (m *Message) GetFrameData() (*FrameData, error) { return decode[FrameData](m) }

// DecodeFrameData returns the raw image bytes.
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", f.RequestID, err)
	}
	return b, nil
}

// GetCaptureRequest returns the capture payload.
func (m *Message) GetCaptureRequest() (*CaptureRequest, error) { return decode[CaptureRequest](m) }

// GetCaptureError returns the capture_error payload.
func (m *Message) GetCaptureError() (*CaptureErrorData, error) { return decode[CaptureErrorData](m) }

// GetHelloData returns the hello payload.
func (m *Message) GetHelloData() (*HelloData, error) { return decode[HelloData](m) }

// GetNotification returns the notification payload.
func (m *Message) GetNotification() (*NotificationData, error) { return decode[NotificationData](m) }

// GetStatusData returns the status payload.
func (m *Message) GetStatusData() (*StatusData, error) { return decode[StatusData](m) }

// GetTriggerData returns the trigger payload.
func (m *Message) GetTriggerData() (*TriggerData, error) { return decode[TriggerData](m) }

// GetPingData returns the ping payload.
func (m *Message) GetPingData() (*PingData, error) { return decode[PingData](m) }

// GetPongData returns the pong payload.
func (m *Message) GetPongData() (*PongData, error) { return decode[PongData](m) }
