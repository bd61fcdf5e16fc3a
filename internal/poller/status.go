package poller

import (
	"context"
	"log"
	"time"

	"medtime-companion/internal/device"
)

// StatusSource reads the device status.
type StatusSource interface {
	GetStatus(ctx context.Context) (device.Status, error)
}

// StatusWatcher periodically checks that the device answers and records
// its clock on the Indicator.
type StatusWatcher struct {
	src       StatusSource
	indicator *Indicator
	interval  time.Duration
	done      chan struct{}
}

func NewStatusWatcher(src StatusSource, indicator *Indicator, interval time.Duration) *StatusWatcher {
	return &StatusWatcher{src: src, indicator: indicator, interval: interval, done: make(chan struct{})}
}

// CheckOnce performs a single status check.
func (w *StatusWatcher) CheckOnce(ctx context.Context) {
	st, err := w.src.GetStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Status check failed: %v", err)
		}
		w.indicator.StatusFailed(err)
		return
	}
	w.indicator.StatusOK(st.DeviceTime)
}

// Run checks status until ctx is cancelled.
func (w *StatusWatcher) Run(ctx context.Context) {
	defer close(w.done)
	log.Println("Starting status watcher...")
	runEvery(ctx, w.interval, w.CheckOnce)
	log.Println("Status watcher shutting down.")
}

// Done is closed when Run returns.
func (w *StatusWatcher) Done() <-chan struct{} {
	return w.done
}
