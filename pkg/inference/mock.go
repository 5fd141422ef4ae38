package inference

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

// Mock implements Submitter for testing.
type Mock struct {
	// SubmitFunc is called when Submit is invoked.
	SubmitFunc func(ctx context.Context, f *frame.Frame, scale float64) notify.Notification

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Submit invocation.
type MockCall struct {
	Scale     float64
	FrameSize int
	Time      time.Time
}

// NewMock creates a mock that always succeeds with "Mock response".
func NewMock() *Mock {
	return &Mock{
		SubmitFunc: func(ctx context.Context, f *frame.Frame, scale float64) notify.Notification {
			n := notify.Success(notify.TitleSuccess, "Mock response")
			n.Payload = map[string]any{MessageField: "Mock response"}
			return n
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SubmitFunc: func(ctx context.Context, f *frame.Frame, scale float64) notify.Notification {
			n := notify.Failure(notify.TitleFailure, err.Error())
			n.ErrorKind = string(KindOf(err))
			return n
		},
	}
}

// Submit calls SubmitFunc and records the call.
func (m *Mock) Submit(ctx context.Context, f *frame.Frame, scale float64) notify.Notification {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Scale: scale, FrameSize: f.Size(), Time: time.Now()})
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, f, scale)
	}
	return notify.Failure(notify.TitleFailure, "mock: no SubmitFunc")
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Submit calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Submitter at compile time.
var _ Submitter = (*Mock)(nil)
