package manager

import (
	"context"
	"time"
)

// StartBackgroundCleanup launches the cleanup loop in its own goroutine and
// returns a stop function. Stop is cooperative: it lets an in-flight pass
// finish and returns once the worker has exited.
func (d *Deleter) StartBackgroundCleanup(interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		d.RunBackgroundCleanup(ctx, interval)
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunBackgroundCleanup runs MarkAndSweep every interval until ctx is
// cancelled, then returns. Cancellation only prevents the next pass; a pass
// already underway runs to completion. The interval is measured start to
// start: a slow pass shortens the following sleep so iterations do not
// drift.
func (d *Deleter) RunBackgroundCleanup(ctx context.Context, interval time.Duration) {
	d.logger.Info("background cleanup started", "interval", interval, "retention", d.retention)

	// Passes keep ctx's values but not its cancellation, so stopping never
	// aborts in-flight backend calls.
	passCtx := context.WithoutCancel(ctx)

	for {
		start := d.now()
		err := d.MarkAndSweep(passCtx)
		elapsed := d.now().Sub(start)
		d.metrics.RecordCleanup(passCtx, elapsed, err != nil)
		if err != nil {
			d.logger.Error("cleanup pass failed", "error", err, "elapsed", elapsed)
		}

		sleep := interval - elapsed
		if sleep < 0 {
			sleep = 0
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info("background cleanup stopped")
			return
		case <-timer.C:
		}
	}
}
