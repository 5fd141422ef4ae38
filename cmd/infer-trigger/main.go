// infer-trigger: serves the inference button for the annotation canvas.
// The canvas connects over WebSocket; POST /api/infer captures its current
// frame, sends it to the inference service and broadcasts the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-infer-trigger/internal/app"
	"github.com/teslashibe/go-infer-trigger/internal/config"
	"github.com/teslashibe/go-infer-trigger/internal/log"
)

var version = "0.1.0"

func main() {
	fs := pflag.NewFlagSet("infer-trigger", pflag.ExitOnError)
	config.RegisterFlags(fs)
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("infer-trigger v" + version)
		return
	}

	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)
	logger := log.L()

	p, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting infer-trigger",
		"version", version,
		"listen", cfg.Server.ListenAddress,
		"endpoint", cfg.Inference.Endpoint,
		"surface", cfg.Surface.Kind,
		"overlap", cfg.Trigger.Overlap,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// New presses are refused from here on; running ones still notify viewers.
	if err := p.Trigger.Shutdown(shutdownCtx); errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("in-flight triggers did not settle", "in_flight", p.Trigger.InFlight())
	}
	if err := p.Server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
}
