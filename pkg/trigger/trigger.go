// Package trigger wires a user action to frame acquisition, inference and the
// notification sink.
//
// Every trigger produces exactly one notification. An acquisition failure is
// reported with its own wording and never reaches the network. Triggers run
// in their own goroutine; the returned *Run makes completion observable.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/inference"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

// Policy decides what happens to a trigger while another one is in flight.
type Policy string

const (
	// PolicyAllow runs overlapping triggers independently.
	PolicyAllow Policy = "allow"

	// PolicyReject fails a trigger immediately while another is in flight.
	PolicyReject Policy = "reject"
)

var (
	// ErrBusy is reported when PolicyReject turns a trigger away.
	ErrBusy = errors.New("an inference request is already in progress")

	// ErrClosed is reported for triggers arriving after Shutdown.
	ErrClosed = errors.New("inference trigger is shutting down")
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAllow:
		return PolicyAllow, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("trigger: unknown overlap policy %q", s)
	}
}

// Acquirer captures the current frame. *frame.Acquirer implements it.
type Acquirer interface {
	Acquire(ctx context.Context) (*frame.Frame, error)
}

// Orchestrator runs triggers.
type Orchestrator struct {
	acquirer  Acquirer
	submitter inference.Submitter
	sink      notify.Sink

	scale  float64
	policy Policy
	logger *slog.Logger

	// mu orders admission against Shutdown so wg.Add never races wg.Wait.
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int32

	triggered atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScale sets the scale used by OnUserTrigger.
func WithScale(scale float64) Option {
	return func(o *Orchestrator) { o.scale = scale }
}

// WithPolicy sets the overlap policy.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator. A nil sink discards notifications.
func New(acq Acquirer, sub inference.Submitter, sink notify.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		acquirer:  acq,
		submitter: sub,
		sink:      sink,
		scale:     inference.DefaultScale,
		policy:    PolicyAllow,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = notify.Multi{}
	}
	o.logger = o.logger.With("component", "trigger")
	return o
}

// OnUserTrigger starts a trigger with the configured scale and returns
// immediately. The outcome goes to the sink; the Run reports completion.
func (o *Orchestrator) OnUserTrigger(ctx context.Context) *Run {
	return o.Trigger(ctx, o.scale)
}

// Trigger starts a trigger with scale. Zero means the configured scale.
// The run outlives ctx's cancellation but keeps its values.
func (o *Orchestrator) Trigger(ctx context.Context, scale float64) *Run {
	run := o.newRun(scale)

	if err := o.admit(); err != nil {
		n := o.refuse(run, err)
		o.deliver(ctx, n)
		run.finish(n)
		return run
	}

	go func() {
		defer o.release()

		runCtx := context.WithoutCancel(ctx)
		n := o.execute(runCtx, run)
		o.deliver(runCtx, n)
		run.finish(n)
	}()

	return run
}

// Execute runs a trigger synchronously and returns its notification, which
// has also been delivered to the sink.
func (o *Orchestrator) Execute(ctx context.Context, scale float64) notify.Notification {
	run := o.newRun(scale)

	if err := o.admit(); err != nil {
		n := o.refuse(run, err)
		o.deliver(ctx, n)
		run.finish(n)
		return n
	}
	defer o.release()

	n := o.execute(ctx, run)
	o.deliver(ctx, n)
	run.finish(n)
	return n
}

func (o *Orchestrator) newRun(scale float64) *Run {
	if scale == 0 {
		scale = o.scale
	}
	o.triggered.Add(1)
	return &Run{
		ID:      uuid.NewString(),
		Scale:   scale,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
}

// admit reserves an in-flight slot. Every nil return is paired with release.
func (o *Orchestrator) admit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.policy == PolicyReject {
		if !o.inFlight.CompareAndSwap(0, 1) {
			return ErrBusy
		}
	} else {
		o.inFlight.Add(1)
	}
	o.wg.Add(1)
	return nil
}

func (o *Orchestrator) release() {
	o.inFlight.Add(-1)
	o.wg.Done()
}

func (o *Orchestrator) refuse(run *Run, err error) notify.Notification {
	o.rejected.Add(1)
	o.logger.Info("trigger refused", "trigger_id", run.ID, "reason", err, "in_flight", o.inFlight.Load())

	n := notify.Failure(notify.TitleFailure, err.Error())
	n.TriggerID = run.ID
	n.ErrorKind = "busy"
	if errors.Is(err, ErrClosed) {
		n.ErrorKind = "closed"
	}
	return n
}

// execute acquires and submits. It never panics.
func (o *Orchestrator) execute(ctx context.Context, run *Run) (n notify.Notification) {
	logger := o.logger.With("trigger_id", run.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("trigger panicked", "panic", r)
			n = notify.Failure(notify.TitleFailure, fmt.Sprintf("internal error: %v", r))
			n.ErrorKind = string(inference.KindInternal)
		}
		n.TriggerID = run.ID
	}()

	logger.Debug("trigger started", "scale", run.Scale)

	f, err := o.acquirer.Acquire(ctx)
	if err != nil {
		logger.Warn("frame acquisition failed", "error", err)
		n = notify.Failure(notify.TitleAcquisition, notify.AcquisitionMessage)
		n.ErrorKind = string(inference.KindAcquisition)
		n.Detail = err.Error()
		return n
	}

	n = o.submitter.Submit(ctx, f, run.Scale)

	logger.Debug("trigger settled",
		"kind", n.Kind,
		"latency_ms", time.Since(run.Started).Milliseconds(),
	)
	return n
}

func (o *Orchestrator) deliver(ctx context.Context, n notify.Notification) {
	if n.IsSuccess() {
		o.succeeded.Add(1)
	} else {
		o.failed.Add(1)
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("notification sink panicked", "panic", r, "trigger_id", n.TriggerID)
		}
	}()
	o.sink.Notify(ctx, n)
}

// InFlight returns the number of triggers currently running.
func (o *Orchestrator) InFlight() int {
	return int(o.inFlight.Load())
}

// Scale returns the scale used by OnUserTrigger.
func (o *Orchestrator) Scale() float64 {
	return o.scale
}

// Policy returns the overlap policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Shutdown refuses new triggers with ErrClosed and waits for the ones
// already running to settle, or for ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.Wait(ctx)
}

// Wait blocks until every started trigger has settled or ctx ends.
// It does not stop new triggers; use Shutdown when callers may still fire.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats contains trigger counters
type Stats struct {
	Triggered uint64 `json:"triggered"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
	InFlight  int    `json:"in_flight"`
}

// GetStats returns trigger counters
func (o *Orchestrator) GetStats() Stats {
	return Stats{
		Triggered: o.triggered.Load(),
		Succeeded: o.succeeded.Load(),
		Failed:    o.failed.Load(),
		Rejected:  o.rejected.Load(),
		InFlight:  o.InFlight(),
	}
}
