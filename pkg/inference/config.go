package inference

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Config holds client configuration.
type Config struct {
	// Connection
	Endpoint string // Full URL of the inference route, e.g. http://host:8000/infer

	// Request defaults
	Scale    float64 // Scale sent when the caller has no preference
	FileName string  // Filename of the image part

	// Timeouts
	Timeout time.Duration

	// Transport override (tests, proxies). Timeout still applies.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithEndpoint sets the inference URL.
// There is no default: environment-specific addresses come from configuration.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) { c.Endpoint = endpoint }
}

// WithScale sets the default scale.
func WithScale(scale float64) Option {
	return func(c *Config) { c.Scale = scale }
}

// WithFileName sets the filename of the image part.
func WithFileName(name string) Option {
	return func(c *Config) { c.FileName = name }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for everything except the endpoint.
func DefaultConfig() *Config {
	return &Config{
		Scale:    DefaultScale,
		FileName: DefaultFile,
		Timeout:  5 * time.Second,
		Logger:   slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrNoEndpoint, c.Endpoint)
	}
	if !validScale(c.Scale) {
		return fmt.Errorf("%w: %v", ErrInvalidScale, c.Scale)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("inference: timeout must be positive, got %v", c.Timeout)
	}
	if c.FileName == "" {
		return fmt.Errorf("inference: file name required")
	}
	return nil
}

func validScale(s float64) bool {
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}
