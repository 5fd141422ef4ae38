// infer-stub: a local stand-in for the inference service.
// It accepts the multipart image/scale request and answers with a Message.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-infer-trigger/internal/log"
)

func main() {
	listen := pflag.String("listen", "127.0.0.1:8000", "Listen address")
	path := pflag.String("path", "/infer", "Inference route")
	delay := pflag.Duration("delay", 0, "Artificial latency per request")
	status := pflag.Int("status", 0, "Fail every request with this HTTP status")
	logLevel := pflag.String("log-level", "info", "Log level")
	pflag.Parse()

	log.Init(*logLevel, "text")
	logger := log.Component("infer-stub")

	app := newApp(stubConfig{
		Path:   *path,
		Delay:  *delay,
		Status: *status,
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		app.Shutdown()
	}()

	logger.Info("listening", "addr", *listen, "path", *path)
	if err := app.Listen(*listen); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
