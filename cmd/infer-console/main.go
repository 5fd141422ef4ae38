// infer-console: interactive inference trigger.
// Press Enter (or type "infer [scale]") to capture the current frame and
// submit it; outcomes are printed as they settle.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/teslashibe/go-infer-trigger/internal/app"
	"github.com/teslashibe/go-infer-trigger/internal/config"
	"github.com/teslashibe/go-infer-trigger/internal/log"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

func main() {
	err := mainImpl()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	fs := pflag.NewFlagSet("infer-console", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load("", fs)
	if err != nil {
		return err
	}

	rl, err := readline.New("infer> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	// Logs share the terminal with the prompt; keep them quiet by default.
	logger := log.New(rl.Stderr(), cfg.Log.Level, cfg.Log.Format)
	if !fs.Changed("log-level") {
		logger = log.New(rl.Stderr(), "warn", cfg.Log.Format)
	}

	p, err := app.New(cfg, logger, notify.NewConsole(rl.Stdout()))
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := p.Server.Start(ctx); err != nil {
			logger.Error("server error", "error", err)
		}
	}()

	fmt.Fprintf(rl.Stdout(), "Inference endpoint: %s (surface: %s)\n", cfg.Inference.Endpoint, cfg.Surface.Kind)
	fmt.Fprintln(rl.Stdout(), `Press Enter to run inference on the current frame, "help" for commands.`)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF, interrupt
			break
		}

		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(rl.Stdout(), err)
			continue
		}

		switch cmd.Name {
		case cmdInfer:
			run := p.Trigger.Trigger(ctx, cmd.Scale)
			fmt.Fprintf(rl.Stdout(), "⏳ %s (scale %v)\n", run.ID[:8], run.Scale)
		case cmdStatus:
			st := p.Server.Status()
			fmt.Fprintf(rl.Stdout(), "in flight: %d  surfaces: %d  triggered: %d  ok: %d  failed: %d\n",
				st.InFlight, st.Surfaces, st.Stats.Triggered, st.Stats.Succeeded, st.Stats.Failed)
		case cmdHistory:
			for _, n := range p.Server.Notifications() {
				fmt.Fprintf(rl.Stdout(), "%s  %s: %s\n", n.Time.Format("15:04:05"), n.Title, n.Message)
			}
		case cmdHelp:
			fmt.Fprint(rl.Stdout(), helpText)
		case cmdQuit:
			return shutdown(p)
		}
	}

	return shutdown(p)
}

func shutdown(p *app.Pipeline) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Trigger.Shutdown(ctx); err != nil {
		return fmt.Errorf("waiting for in-flight triggers: %w", err)
	}
	return p.Server.Shutdown(ctx)
}
