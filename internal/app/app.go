// Package app assembles the trigger pipeline from configuration.
package app

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-infer-trigger/internal/config"
	"github.com/teslashibe/go-infer-trigger/internal/httpc"
	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/inference"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
	"github.com/teslashibe/go-infer-trigger/pkg/surface"
	"github.com/teslashibe/go-infer-trigger/pkg/trigger"
	"github.com/teslashibe/go-infer-trigger/pkg/web"
)

// Pipeline holds the wired components.
type Pipeline struct {
	// Surface is the canvas bridge; nil unless surface.kind is websocket.
	Surface  *surface.Hub
	Acquirer *frame.Acquirer
	Client   *inference.Client
	Server   *web.Server
	Trigger  *trigger.Orchestrator
}

// NewSource builds the frame source selected by cfg.
func NewSource(cfg *config.Config, logger *slog.Logger) (frame.Source, *surface.Hub, error) {
	switch cfg.Surface.Kind {
	case config.SurfaceWebSocket:
		h := surface.NewHub(
			surface.WithCaptureTimeout(cfg.Surface.CaptureTimeout),
			surface.WithLogger(logger),
		)
		return h, h, nil
	case config.SurfaceFile:
		return frame.NewFileSource(cfg.Surface.Path), nil, nil
	case config.SurfaceHTTP:
		return frame.NewHTTPSource(cfg.Surface.URL, httpc.NewResty(cfg.Surface.CaptureTimeout)), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown surface kind %q", cfg.Surface.Kind)
	}
}

// New wires source, inference client, web server and orchestrator.
// Notifications go to the log, the web server and any extra sinks.
func New(cfg *config.Config, logger *slog.Logger, extra ...notify.Sink) (*Pipeline, error) {
	src, hub, err := NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := inference.NewClient(
		inference.WithEndpoint(cfg.Inference.Endpoint),
		inference.WithScale(cfg.Inference.Scale),
		inference.WithTimeout(cfg.Inference.Timeout),
		inference.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	policy, err := trigger.ParsePolicy(cfg.Trigger.Overlap)
	if err != nil {
		client.Close()
		return nil, err
	}

	acq := frame.NewAcquirer(src,
		frame.WithTimeout(cfg.Surface.CaptureTimeout),
		frame.WithLogger(logger),
	)

	opts := []web.Option{
		web.WithLogger(logger),
		web.WithEndpoint(client.Endpoint()),
	}
	if hub != nil {
		opts = append(opts, web.WithSurfaces(hub))
	}
	srv := web.NewServer(cfg.Server.ListenAddress, opts...)

	sinks := notify.Multi{notify.NewLogSink(logger), srv}
	sinks = append(sinks, extra...)

	orch := trigger.New(acq, client, sinks,
		trigger.WithScale(cfg.Inference.Scale),
		trigger.WithPolicy(policy),
		trigger.WithLogger(logger),
	)
	srv.SetTrigger(orch)

	return &Pipeline{
		Surface:  hub,
		Acquirer: acq,
		Client:   client,
		Server:   srv,
		Trigger:  orch,
	}, nil
}

// Close releases the inference client.
func (p *Pipeline) Close() error {
	return p.Client.Close()
}
