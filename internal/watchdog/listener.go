package watchdog

import (
	"context"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

// attachListener subscribes to changes from other execution contexts.
// When the store cannot watch, scheduled sweeps remain the only safety net.
func (w *Watchdog) attachListener(ctx context.Context) {
	ch, err := w.store.Watch(ctx)
	if err != nil {
		w.logger.Warn("change listener unavailable, relying on scheduled sweeps", "error", err)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-ch:
				if !ok {
					return
				}
				w.handleChange(c)
			}
		}
	}()
}

// handleChange re-checks the one record a foreign write touched. Valid and
// absent-optional records produce no report.
func (w *Watchdog) handleChange(c kvstore.Change) {
	if c.Cleared {
		w.logger.Info("store cleared by another context, sweeping")
		w.RunHealthCheck()
		return
	}

	rec, ok := w.reg.Lookup(c.Key)
	if !ok {
		return
	}

	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	state, detail := w.classify(rec)
	switch {
	case state == Unavailable:
		w.logger.Warn("changed record unreadable", "key", rec.Key, "error", detail)
		return
	case !state.NeedsRepair():
		return
	}

	if !w.limiter.Allow() {
		w.logger.Warn("repair budget exhausted, leaving record for the next sweep",
			"key", rec.Key, "state", state)
		return
	}

	rs := RecordStatus{Key: rec.Key, State: state, Detail: detail, Reason: ReasonExternal}
	if err := w.repair(rec, ReasonExternal); err != nil {
		rs.Error = "repair failed: " + err.Error()
	} else {
		rs.Repaired = true
	}

	b := newBuilder(ScopeKey, 1)
	b.add(rs)
	w.reporter.publish(b.finish(w.now()))
}
