package frame

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-resty/resty/v2"
)

// FileSource reads the current frame from a file the annotation tool keeps
// up to date (for example an export of the active view).
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Name implements Namer.
func (s *FileSource) Name() string { return "file" }

// CurrentFrame reads the file.
func (s *FileSource) CurrentFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoSurface, s.Path)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	return data, nil
}

// HTTPSource fetches the current frame from a snapshot endpoint exposed by
// the rendering surface.
type HTTPSource struct {
	URL    string
	client *resty.Client
}

// NewHTTPSource creates a snapshot source using client.
func NewHTTPSource(url string, client *resty.Client) *HTTPSource {
	if client == nil {
		client = resty.New()
	}
	return &HTTPSource{URL: url, client: client}
}

// Name implements Namer.
func (s *HTTPSource) Name() string { return "http" }

// CurrentFrame performs a GET on the snapshot URL.
func (s *HTTPSource) CurrentFrame(ctx context.Context) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "image/png, image/*").
		Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("snapshot request: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: snapshot returned %s", ErrNoSurface, resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, ErrEmptyFrame
	}
	return body, nil
}

// Static always returns the same image. Useful for tests and demos.
type Static []byte

// Name implements Namer.
func (s Static) Name() string { return "static" }

// CurrentFrame returns a copy of s.
func (s Static) CurrentFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, ErrEmptyFrame
	}
	out := make([]byte, len(s))
	copy(out, s)
	return out, nil
}
