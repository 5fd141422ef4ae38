// Package frame acquires the image currently shown by a rendering surface.
//
// A Source is the external surface (an annotation canvas, an exported file,
// a snapshot endpoint). An Acquirer asks it for the current frame, bounds the
// wait, normalises the bytes to PNG and reports every failure as an
// *AcquisitionError.
//
// Example usage:
//
//	acq := frame.NewAcquirer(frame.NewFileSource("/tmp/current.png"),
//	    frame.WithTimeout(3*time.Second),
//	)
//	f, err := acq.Acquire(ctx)
//	if frame.IsAcquisitionError(err) {
//	    // nothing to submit
//	}
package frame

import (
	"context"
	"log/slog"
	"time"
)

// ContentType is the MIME type of every Frame.
const ContentType = "image/png"

// DefaultTimeout bounds a single acquisition.
const DefaultTimeout = 3 * time.Second

// Frame is one captured raster image.
// It is owned by the trigger that requested it and never cached.
type Frame struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	CapturedAt  time.Time
}

// Size returns the payload size in bytes.
func (f *Frame) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Source is a rendering surface able to produce its current frame.
// Implementations must honour ctx cancellation.
type Source interface {
	CurrentFrame(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]byte, error)

// CurrentFrame calls f.
func (f SourceFunc) CurrentFrame(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// Namer is implemented by sources that can describe themselves in errors.
type Namer interface {
	Name() string
}

// Acquirer captures frames from a Source.
type Acquirer struct {
	source  Source
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithTimeout bounds how long Acquire waits for the surface.
func WithTimeout(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAcquirer creates an acquirer reading from src.
func NewAcquirer(src Source, opts ...Option) *Acquirer {
	a := &Acquirer{
		source:  src,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if n, ok := src.(Namer); ok {
		a.name = n.Name()
	}
	a.logger = a.logger.With("component", "frame.acquirer")
	return a
}

// Acquire returns the surface's current frame as PNG.
// Any failure is returned as *AcquisitionError.
func (a *Acquirer) Acquire(ctx context.Context) (*Frame, error) {
	if a.source == nil {
		return nil, a.fail(ErrNoSurface)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	data, err := a.source.CurrentFrame(ctx)
	if err != nil {
		return nil, a.fail(err)
	}

	data, size, err := ToPNG(data)
	if err != nil {
		return nil, a.fail(err)
	}

	a.logger.Debug("frame acquired",
		"bytes", len(data),
		"width", size.X,
		"height", size.Y,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Frame{
		Data:        data,
		ContentType: ContentType,
		Width:       size.X,
		Height:      size.Y,
		CapturedAt:  time.Now(),
	}, nil
}

func (a *Acquirer) fail(err error) error {
	a.logger.Debug("frame acquisition failed", "source", a.name, "error", err)
	return &AcquisitionError{Source: a.name, Err: err}
}
