package watchdog

import (
	"context"
	"time"
)

// start attaches the listener, runs the first sweep and launches the ticker.
func (w *Watchdog) start() {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()
	if w.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel

	// Subscribe before the first sweep so no change made during it is lost.
	if *w.opts.Listen {
		w.attachListener(ctx)
	}

	w.RunHealthCheck()

	w.wg.Add(1)
	go w.runScheduler(ctx)
	w.logger.Debug("watchdog started", "interval", w.opts.Interval, "listen", *w.opts.Listen)
}

// Start restarts a stopped watchdog. It is a no-op when already running.
func (w *Watchdog) Start() {
	w.start()
}

// runScheduler sweeps once per interval until ctx is done. Ticks that arrive
// while a sweep is still running are dropped by the ticker, so timer sweeps
// never overlap.
func (w *Watchdog) runScheduler(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			w.RunHealthCheck()
		}
	}
}
