package watchdog

import (
	"log/slog"
	"sync"
)

// Observer receives watchdog events. Calls are synchronous on the goroutine
// running the pass; an Observer must not call back into the Watchdog.
type Observer interface {
	// HealthChecked is called after every published pass.
	HealthChecked(Result)

	// Repaired is called after every successful repair write.
	Repaired(key, reason string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnHealthCheck func(Result)
	OnRepair      func(key, reason string)
}

// HealthChecked implements Observer.
func (o ObserverFuncs) HealthChecked(r Result) {
	if o.OnHealthCheck != nil {
		o.OnHealthCheck(r)
	}
}

// Repaired implements Observer.
func (o ObserverFuncs) Repaired(key, reason string) {
	if o.OnRepair != nil {
		o.OnRepair(key, reason)
	}
}

// reporter keeps the latest result and fans events out to observers.
// A panicking observer is logged and skipped.
type reporter struct {
	logger    *slog.Logger
	observers []Observer

	mu     sync.RWMutex
	latest *Result
}

func newReporter(logger *slog.Logger, observers []Observer) *reporter {
	return &reporter{logger: logger, observers: observers}
}

func (r *reporter) publish(res Result) {
	r.mu.Lock()
	stored := res.Clone()
	r.latest = &stored
	r.mu.Unlock()

	for _, o := range r.observers {
		r.safely("HealthChecked", func() { o.HealthChecked(res.Clone()) })
	}
}

func (r *reporter) repaired(key, reason string) {
	for _, o := range r.observers {
		r.safely("Repaired", func() { o.Repaired(key, reason) })
	}
}

func (r *reporter) status() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latest == nil {
		return nil
	}
	res := r.latest.Clone()
	return &res
}

func (r *reporter) safely(event string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("watchdog observer panicked", "event", event, "panic", p)
		}
	}()
	fn()
}
