// Package inference submits captured frames to a remote inference service.
//
// A request is a multipart POST with two parts: "image" (the PNG frame, sent
// as current-image.png) and "scale" (a decimal string). The service answers
// with a JSON object whose "Message" field is shown to the user; every other
// field is passed through untouched.
//
// Example usage:
//
//	client, err := inference.NewClient(
//	    inference.WithEndpoint(cfg.Inference.Endpoint),
//	    inference.WithTimeout(5*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	n := client.Submit(ctx, f, 1.0) // always exactly one Success or Failure
package inference

import (
	"context"
	"time"

	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

// Wire contract.
const (
	FieldImage    = "image"
	FieldScale    = "scale"
	MessageField  = "Message"
	DefaultFile   = "current-image.png"
	DefaultScale  = 1.0
	maxBodyInErrs = 200
)

// Submitter turns a frame into exactly one user-facing notification.
// Implementations never return errors or panic past their boundary.
type Submitter interface {
	Submit(ctx context.Context, f *frame.Frame, scale float64) notify.Notification
}

// Result is a successfully parsed inference response.
type Result struct {
	// Message is the human-readable "Message" field.
	Message string

	// Payload is the whole decoded response object.
	Payload map[string]any

	// StatusCode is the HTTP status returned by the service.
	StatusCode int

	// Latency is the time from request start to parsed response.
	Latency time.Duration
}
