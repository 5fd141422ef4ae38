package frame

import (
	"errors"
	"fmt"
)

// Sentinel errors for common acquisition failures.
var (
	// ErrNoSurface is returned when no rendering surface is available.
	ErrNoSurface = errors.New("frame: no rendering surface available")

	// ErrEmptyFrame is returned when the surface produced no image data.
	ErrEmptyFrame = errors.New("frame: empty frame")

	// ErrUnsupportedFormat is returned when the image data cannot be decoded.
	ErrUnsupportedFormat = errors.New("frame: unsupported image format")
)

// AcquisitionError reports that the current frame could not be captured.
// Every error returned by Acquirer.Acquire has this type, so callers can tell
// a capture failure apart from anything that happens later in the pipeline.
type AcquisitionError struct {
	// Source names the surface that failed (file, http, websocket, ...).
	Source string
	Err    error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("acquire frame: %v", e.Err)
	}
	return fmt.Sprintf("acquire frame [%s]: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// IsAcquisitionError reports whether err is or wraps an AcquisitionError.
func IsAcquisitionError(err error) bool {
	var ae *AcquisitionError
	return errors.As(err, &ae)
}
