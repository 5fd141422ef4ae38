package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// LogSink writes notifications as structured log records.
// Successes log at info, failures at warn with their error kind.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through l.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{logger: l.With("component", "notify")}
}

// Notify logs n.
func (s *LogSink) Notify(ctx context.Context, n Notification) {
	if n.IsSuccess() {
		s.logger.InfoContext(ctx, n.Title,
			"trigger_id", n.TriggerID,
			"message", n.Message,
		)
		return
	}
	s.logger.WarnContext(ctx, n.Title,
		"trigger_id", n.TriggerID,
		"error_kind", n.ErrorKind,
		"message", n.Message,
		"detail", n.Detail,
	)
}

// Console prints notifications for a terminal user.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Notify prints n on one line.
func (c *Console) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := "✅"
	if n.IsFailure() {
		icon = "❌"
	}
	fmt.Fprintf(c.w, "%s %s: %s\n", icon, n.Title, n.Message)
}
