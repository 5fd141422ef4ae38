package inference

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-infer-trigger/pkg/frame"
)

// Sentinel errors for common conditions.
var (
	// ErrNoEndpoint is returned when the endpoint is missing or not an absolute URL.
	ErrNoEndpoint = errors.New("inference: endpoint required")

	// ErrInvalidRequest is wrapped by every request validation failure.
	ErrInvalidRequest = errors.New("invalid inference request")

	// ErrEmptyImage is returned when the frame carries no image data.
	ErrEmptyImage = fmt.Errorf("%w: image is empty", ErrInvalidRequest)

	// ErrInvalidScale is returned when scale is not a finite positive number.
	ErrInvalidScale = fmt.Errorf("%w: scale must be a finite positive number", ErrInvalidRequest)

	// ErrMissingMessage is returned when the response has no string "Message" field.
	ErrMissingMessage = errors.New(`response has no string "Message" field`)

	// ErrNotObject is returned when the response body is JSON but not an object.
	ErrNotObject = errors.New("response is not a JSON object")
)

// ErrorKind classifies pipeline failures for logs and telemetry.
type ErrorKind string

const (
	KindAcquisition    ErrorKind = "acquisition"
	KindNetwork        ErrorKind = "network"
	KindRequestFailed  ErrorKind = "request_failed"
	KindParse          ErrorKind = "parse"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindInternal       ErrorKind = "internal"
	KindUnknown        ErrorKind = "unknown"
)

// RequestFailedError reports a non-2xx response, whatever its body.
type RequestFailedError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the status line, e.g. "500 Internal Server Error".
	Status string

	// Body is the start of the response body, kept for logs only.
	Body string
}

// Error implements the error interface.
func (e *RequestFailedError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("inference request failed: server returned %s", status)
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *RequestFailedError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsClientError returns true if the service rejected the request (HTTP 4xx).
func (e *RequestFailedError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// NetworkError reports a transport failure: DNS, refused connection, timeout.
type NetworkError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("inference service unreachable: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError reports a 2xx response whose body does not honour the contract.
type ParseError struct {
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid inference response: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Acquisition errors from package frame are recognised
// so callers can keep upstream failures apart from pipeline failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var (
		acq    *frame.AcquisitionError
		netErr *NetworkError
		reqErr *RequestFailedError
		parse  *ParseError
	)
	switch {
	case errors.As(err, &acq):
		return KindAcquisition
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &reqErr):
		return KindRequestFailed
	case errors.As(err, &parse):
		return KindParse
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
