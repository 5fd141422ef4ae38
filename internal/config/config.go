// Package config loads go-infer-trigger configuration.
//
// Values are resolved with the following priority (highest first):
// command-line flags, INFER_* environment variables, the YAML config file,
// built-in defaults. The inference endpoint has no default and must be set.
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. INFER_INFERENCE_ENDPOINT.
const EnvPrefix = "INFER"

// Surface kinds.
const (
	SurfaceWebSocket = "websocket"
	SurfaceFile      = "file"
	SurfaceHTTP      = "http"
)

// Overlap policies for concurrent triggers.
const (
	OverlapAllow  = "allow"
	OverlapReject = "reject"
)

// InferenceConfig configures the remote inference service.
type InferenceConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Scale    float64       `mapstructure:"scale"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SurfaceConfig selects where frames are acquired from.
type SurfaceConfig struct {
	Kind           string        `mapstructure:"kind"`
	Path           string        `mapstructure:"path"`
	URL            string        `mapstructure:"url"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout"`
}

// ServerConfig configures the web trigger surface.
type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// TriggerConfig configures trigger orchestration.
type TriggerConfig struct {
	Overlap string `mapstructure:"overlap"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config holds the application configuration.
type Config struct {
	Inference InferenceConfig `mapstructure:"inference"`
	Surface   SurfaceConfig   `mapstructure:"surface"`
	Server    ServerConfig    `mapstructure:"server"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Log       LogConfig       `mapstructure:"log"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"endpoint":        "inference.endpoint",
	"scale":           "inference.scale",
	"timeout":         "inference.timeout",
	"surface":         "surface.kind",
	"surface-path":    "surface.path",
	"surface-url":     "surface.url",
	"capture-timeout": "surface.capture_timeout",
	"listen":          "server.listen_address",
	"overlap":         "trigger.overlap",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// RegisterFlags adds the configuration flags to fs, plus --config.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("endpoint", "", "Inference service URL, e.g. http://inference:8000/infer")
	fs.Float64("scale", 1.0, "Scale factor sent with each frame")
	fs.Duration("timeout", 5*time.Second, "Inference request timeout")
	fs.String("surface", SurfaceWebSocket, "Frame source: websocket, file or http")
	fs.String("surface-path", "", "Frame file path (surface=file)")
	fs.String("surface-url", "", "Snapshot URL (surface=http)")
	fs.Duration("capture-timeout", 3*time.Second, "Frame acquisition timeout")
	fs.String("listen", "127.0.0.1:8090", "Web trigger listen address")
	fs.String("overlap", OverlapAllow, "Concurrent trigger policy: allow or reject")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("inference.endpoint", "")
	v.SetDefault("inference.scale", 1.0)
	v.SetDefault("inference.timeout", "5s")
	v.SetDefault("surface.kind", SurfaceWebSocket)
	v.SetDefault("surface.path", "")
	v.SetDefault("surface.url", "")
	v.SetDefault("surface.capture_timeout", "3s")
	v.SetDefault("server.listen_address", "127.0.0.1:8090")
	v.SetDefault("trigger.overlap", OverlapAllow)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves configuration from defaults, the optional file at path,
// the environment and, when fs is non-nil, explicitly set flags.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" && fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	var errs []error

	if c.Inference.Endpoint == "" {
		errs = append(errs, errors.New("inference.endpoint is required"))
	} else if err := ValidateEndpoint(c.Inference.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if math.IsNaN(c.Inference.Scale) || math.IsInf(c.Inference.Scale, 0) || c.Inference.Scale <= 0 {
		errs = append(errs, fmt.Errorf("inference.scale must be a positive number, got %v", c.Inference.Scale))
	}
	if c.Inference.Timeout <= 0 {
		errs = append(errs, errors.New("inference.timeout must be positive"))
	}
	if c.Surface.CaptureTimeout <= 0 {
		errs = append(errs, errors.New("surface.capture_timeout must be positive"))
	}

	switch c.Surface.Kind {
	case SurfaceWebSocket:
	case SurfaceFile:
		if c.Surface.Path == "" {
			errs = append(errs, errors.New("surface.path is required for the file surface"))
		}
	case SurfaceHTTP:
		if c.Surface.URL == "" {
			errs = append(errs, errors.New("surface.url is required for the http surface"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown surface.kind %q", c.Surface.Kind))
	}

	switch c.Trigger.Overlap {
	case OverlapAllow, OverlapReject:
	default:
		errs = append(errs, fmt.Errorf("unknown trigger.overlap %q", c.Trigger.Overlap))
	}

	return errors.Join(errs...)
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("inference.endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("inference.endpoint must be an absolute http(s) URL, got %q", endpoint)
	}
	return nil
}
