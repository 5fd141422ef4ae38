package notify

import (
	"context"
	"sync"
)

// Recorder is a Sink that stores every notification it receives.
// It is intended for tests that need to wait for asynchronous outcomes.
type Recorder struct {
	mu      sync.Mutex
	items   []Notification
	waiters []recorderWaiter
}

type recorderWaiter struct {
	n  int
	ch chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records n and wakes any waiter whose count is reached.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, n)

	kept := r.waiters[:0]
	for _, w := range r.waiters {
		if len(r.items) >= w.n {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	r.waiters = kept
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Wait blocks until at least n notifications were recorded or ctx ends.
func (r *Recorder) Wait(ctx context.Context, n int) ([]Notification, error) {
	r.mu.Lock()
	if len(r.items) >= n {
		r.mu.Unlock()
		return r.All(), nil
	}
	ch := make(chan struct{})
	r.waiters = append(r.waiters, recorderWaiter{n: n, ch: ch})
	r.mu.Unlock()

	select {
	case <-ch:
		return r.All(), nil
	case <-ctx.Done():
		return r.All(), ctx.Err()
	}
}

// Reset clears recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
