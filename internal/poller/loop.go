package poller

import (
	"context"
	"time"
)

// runEvery calls fn immediately and then every interval until ctx is done.
// The next interval starts after fn returns, so calls never overlap.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fn(ctx)
			timer.Reset(interval)
		}
	}
}
