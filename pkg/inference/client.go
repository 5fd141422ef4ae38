package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/teslashibe/go-infer-trigger/internal/httpc"
	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

// Client is the HTTP inference pipeline.
// It is safe for concurrent use; each call builds its own request.
type Client struct {
	endpoint string
	config   *Config
	http     *resty.Client
	logger   *slog.Logger
}

// NewClient creates a new inference client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = httpc.FromHTTP(cfg.HTTPClient).SetTimeout(cfg.Timeout)
	} else {
		rc = httpc.NewResty(cfg.Timeout)
	}

	return &Client{
		endpoint: cfg.Endpoint,
		config:   cfg,
		http:     rc,
		logger:   cfg.Logger.With("component", "inference.client"),
	}, nil
}

// Endpoint returns the configured inference URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// DefaultScale returns the configured default scale.
func (c *Client) DefaultScale() float64 {
	return c.config.Scale
}

// Infer submits f with scale and returns the parsed response.
// Errors are *NetworkError, *RequestFailedError, *ParseError or wrap
// ErrInvalidRequest.
func (c *Client) Infer(ctx context.Context, f *frame.Frame, scale float64) (*Result, error) {
	start := time.Now()

	if f == nil || len(f.Data) == 0 {
		return nil, ErrEmptyImage
	}
	if !validScale(scale) {
		return nil, fmt.Errorf("%w (got %v)", ErrInvalidScale, scale)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetMultipartField(FieldImage, c.config.FileName, frame.ContentType, bytes.NewReader(f.Data)).
		SetMultipartFormData(map[string]string{
			FieldScale: FormatScale(scale),
		}).
		Post(c.endpoint)
	if err != nil {
		return nil, &NetworkError{Endpoint: c.endpoint, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &RequestFailedError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       truncate(string(resp.Body()), maxBodyInErrs),
		}
	}

	result, err := ParseResponse(resp.Body())
	if err != nil {
		return nil, err
	}
	result.StatusCode = resp.StatusCode()
	result.Latency = time.Since(start)

	c.logger.Debug("inference response",
		"status", result.StatusCode,
		"latency_ms", result.Latency.Milliseconds(),
		"payload", result.Payload,
	)
	return result, nil
}

// Submit runs Infer and maps the outcome to exactly one notification.
// It never panics: a panic inside the pipeline becomes a Failure.
func (c *Client) Submit(ctx context.Context, f *frame.Frame, scale float64) (n notify.Notification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("inference panicked", "panic", r)
			n = notify.Failure(notify.TitleFailure, fmt.Sprintf("internal error: %v", r))
			n.ErrorKind = string(KindInternal)
		}
	}()

	result, err := c.Infer(ctx, f, scale)
	if err != nil {
		kind := KindOf(err)
		c.logger.Warn("inference failed",
			"kind", kind,
			"endpoint", c.endpoint,
			"error", err,
		)
		n = notify.Failure(notify.TitleFailure, err.Error())
		n.ErrorKind = string(kind)
		var rf *RequestFailedError
		if errors.As(err, &rf) && rf.Body != "" {
			n.Detail = rf.Body
		}
		return n
	}

	n = notify.Success(notify.TitleSuccess, result.Message)
	n.Payload = result.Payload
	return n
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// FormatScale renders scale as the shortest decimal string that parses back
// to the same value, so 1.0 is sent as "1".
func FormatScale(scale float64) string {
	return strconv.FormatFloat(scale, 'f', -1, 64)
}

// ParseResponse decodes a 2xx body. The "Message" field is required; the rest
// of the object is kept as an opaque payload.
func ParseResponse(body []byte) (*Result, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{Err: err}
	}
	if payload == nil {
		return nil, &ParseError{Err: ErrNotObject}
	}

	msg, ok := payload[MessageField].(string)
	if !ok {
		return nil, &ParseError{Err: ErrMissingMessage}
	}

	return &Result{Message: msg, Payload: payload}, nil
}

// Verify Client implements Submitter at compile time.
var _ Submitter = (*Client)(nil)
