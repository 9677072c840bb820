package watchdog

import (
	"errors"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
)

// RunHealthCheck sweeps every record in registration order, repairs what
// needs it, publishes the result and returns it.
func (w *Watchdog) RunHealthCheck() Result {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()
	return w.sweepLocked()
}

func (w *Watchdog) sweepLocked() Result {
	b := newBuilder(ScopeFull, w.reg.Len())
	for _, rec := range w.reg.Records() {
		b.add(w.check(rec, ""))
	}
	res := b.finish(w.now())

	w.logger.Debug("health check complete",
		"healthy", res.IsHealthy, "repaired", len(res.RepairedKeys), "errors", len(res.Errors))
	w.reporter.publish(res)
	return res
}

// CheckKey runs the single-record pipeline for key and publishes the
// result. ok is false when key is not monitored.
func (w *Watchdog) CheckKey(key string) (res Result, ok bool) {
	rec, ok := w.reg.Lookup(key)
	if !ok {
		return Result{}, false
	}

	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	b := newBuilder(ScopeKey, 1)
	b.add(w.check(rec, ""))
	res = b.finish(w.now())
	w.reporter.publish(res)
	return res, true
}

// classify reads rec and decides its state. detail carries the decode or
// store error text for Corrupt and Unavailable records.
func (w *Watchdog) classify(rec registry.Record) (state State, detail string) {
	value, err := w.accessor.Read(rec.Key)
	if err != nil {
		var re *ReadError
		if !errors.As(err, &re) {
			return Unavailable, err.Error()
		}
		switch {
		case errors.Is(re.Reason, ErrAbsent):
			if rec.Required {
				return MissingRequired, ""
			}
			return MissingOptional, ""
		case errors.Is(re.Reason, ErrMalformed):
			return Corrupt, re.Detail()
		default:
			return Unavailable, re.Detail()
		}
	}

	if !w.validate(rec, value) {
		return InvalidSchema, ""
	}
	return Valid, ""
}

// validate runs the record's validator, treating a panic as a failed check.
func (w *Watchdog) validate(rec registry.Record, value any) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Warn("validator panicked", "key", rec.Key, "panic", p)
			ok = false
		}
	}()
	return rec.Validate(value)
}

// check classifies rec and repairs it when needed. A non-empty reason
// overrides the state's own repair reason.
func (w *Watchdog) check(rec registry.Record, reason string) RecordStatus {
	state, detail := w.classify(rec)
	rs := RecordStatus{Key: rec.Key, State: state, Detail: detail}

	if state == Unavailable {
		rs.Error = "read failed: " + detail
		w.logger.Warn("record unreadable", "key", rec.Key, "error", detail)
		return rs
	}
	if !state.NeedsRepair() {
		return rs
	}

	if reason == "" {
		reason = repairReason(state, detail)
	}
	rs.Reason = reason
	if err := w.repair(rec, reason); err != nil {
		rs.Error = "repair failed: " + err.Error()
		return rs
	}
	rs.Repaired = true
	return rs
}

func repairReason(state State, detail string) string {
	switch state {
	case MissingRequired:
		return ReasonMissing
	case Corrupt:
		if detail == "" {
			return ReasonCorrupt
		}
		return ReasonCorrupt + ": " + detail
	default:
		return ReasonInvalid
	}
}
