package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

// Run is one trigger-to-notification cycle.
type Run struct {
	ID      string
	Scale   float64
	Started time.Time

	once sync.Once
	done chan struct{}
	n    notify.Notification
}

// Done is closed once the run's notification has been delivered.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run settles or ctx ends.
func (r *Run) Wait(ctx context.Context) (notify.Notification, error) {
	select {
	case <-r.done:
		return r.n, nil
	case <-ctx.Done():
		return notify.Notification{}, ctx.Err()
	}
}

// Notification returns the outcome if the run has settled.
func (r *Run) Notification() (notify.Notification, bool) {
	select {
	case <-r.done:
		return r.n, true
	default:
		return notify.Notification{}, false
	}
}

func (r *Run) finish(n notify.Notification) {
	r.once.Do(func() {
		r.n = n
		close(r.done)
	})
}
