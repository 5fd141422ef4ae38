// Package notify defines the user-facing outcome of an inference trigger and
// the sinks that display it.
//
// A Notification is a tagged union of Success and Failure. Every trigger
// produces exactly one. Sinks decide how it is shown (toast, log line,
// terminal); the core only hands them structured values.
package notify

import (
	"context"
	"time"
)

// Kind tags a notification as a success or a failure.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// Titles shown to the user.
const (
	TitleSuccess     = "Inference Successful"
	TitleFailure     = "Inference Failed"
	TitleAcquisition = "Error"
)

// AcquisitionMessage is the description used when no frame could be captured.
const AcquisitionMessage = "Failed to retrieve the current image from the canvas."

// Notification is one outcome delivered to a Sink.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`

	// TriggerID correlates the notification with the trigger that caused it.
	TriggerID string `json:"trigger_id,omitempty"`

	// ErrorKind classifies failures for telemetry (acquisition, network, ...).
	ErrorKind string `json:"error_kind,omitempty"`

	// Detail carries the underlying error text when Message is a fixed phrase.
	Detail string `json:"detail,omitempty"`

	// Payload is the inference response body, passed through untouched.
	Payload map[string]any `json:"payload,omitempty"`

	Time time.Time `json:"time"`
}

// Success creates a success notification.
func Success(title, message string) Notification {
	return Notification{Kind: KindSuccess, Title: title, Message: message, Time: time.Now()}
}

// Failure creates a failure notification.
func Failure(title, message string) Notification {
	return Notification{Kind: KindFailure, Title: title, Message: message, Time: time.Now()}
}

// IsSuccess reports whether n is a success.
func (n Notification) IsSuccess() bool {
	return n.Kind == KindSuccess
}

// IsFailure reports whether n is a failure.
func (n Notification) IsFailure() bool {
	return n.Kind == KindFailure
}

// Sink receives notifications. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Multi fans a notification out to every sink in order.
type Multi []Sink

// Notify delivers n to each non-nil sink.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}
