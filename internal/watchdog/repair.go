package watchdog

import (
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
)

// repair overwrites rec with its default and reports it. The caller holds sweepMu.
func (w *Watchdog) repair(rec registry.Record, reason string) error {
	if err := w.accessor.Write(rec.Key, rec.Default); err != nil {
		w.logger.Warn("repair failed", "key", rec.Key, "reason", reason, "error", err)
		return err
	}
	w.logger.Info("record repaired", "key", rec.Key, "reason", reason)
	w.reporter.repaired(rec.Key, reason)
	return nil
}

// ForceRepairAll overwrites every record with its default regardless of its
// current state and publishes the result.
func (w *Watchdog) ForceRepairAll() Result {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	b := newBuilder(ScopeForce, w.reg.Len())
	for _, rec := range w.reg.Records() {
		state, detail := w.classify(rec)
		rs := RecordStatus{Key: rec.Key, State: state, Detail: detail, Reason: ReasonForce}
		if err := w.repair(rec, ReasonForce); err != nil {
			rs.Error = "repair failed: " + err.Error()
		} else {
			rs.Repaired = true
		}
		b.add(rs)
	}
	res := b.finish(w.now())

	w.logger.Info("forced repair complete", "repaired", len(res.RepairedKeys), "errors", len(res.Errors))
	w.reporter.publish(res)
	return res
}
