// Package watchdog keeps the records of a shared key-value store valid.
//
// A Watchdog sweeps every registered record on a fixed interval, repairs
// records that are missing, corrupt or fail their validator by writing the
// registered default, and re-checks single records as soon as another
// execution context changes them.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
)

// Defaults for Options.
const (
	DefaultInterval    = 10 * time.Second
	DefaultRepairRate  = rate.Limit(5)
	DefaultRepairBurst = 10
)

// Options configures a Watchdog. The zero value is usable.
type Options struct {
	// Enabled starts the scheduler and listener in Configure. Nil means true.
	Enabled *bool

	// Interval between scheduled sweeps. Zero means DefaultInterval.
	Interval time.Duration

	// OnHealthCheck is called after every full, single-key and forced pass.
	OnHealthCheck func(Result)

	// OnRepair is called after every successful repair.
	OnRepair func(key, reason string)

	// Observers receive the same events as the callbacks.
	Observers []Observer

	// Listen subscribes to changes made by other execution contexts.
	// Nil means true.
	Listen *bool

	// RepairRate bounds repairs triggered by change notifications.
	// Zero means DefaultRepairRate.
	RepairRate rate.Limit

	// RepairBurst is the limiter burst. Zero means DefaultRepairBurst.
	RepairBurst int

	Logger *slog.Logger
}

// Bool returns a pointer to b, for Options fields.
func Bool(b bool) *bool {
	return &b
}

func (o Options) withDefaults() Options {
	if o.Enabled == nil {
		o.Enabled = Bool(true)
	}
	if o.Listen == nil {
		o.Listen = Bool(true)
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.RepairRate == 0 {
		o.RepairRate = DefaultRepairRate
	}
	if o.RepairBurst == 0 {
		o.RepairBurst = DefaultRepairBurst
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Watchdog guards the records of one registry in one store.
type Watchdog struct {
	reg      *registry.Registry
	store    kvstore.Store
	accessor *Accessor
	opts     Options
	logger   *slog.Logger
	reporter *reporter
	limiter  *rate.Limiter

	// sweepMu serializes every pass so none overlap.
	sweepMu sync.Mutex

	lifeMu  sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// Configure builds a Watchdog for reg over store and, unless Enabled is
// false, starts it: an immediate sweep, then one sweep per Interval, plus
// the change listener.
func Configure(reg *registry.Registry, store kvstore.Store, opts Options) (*Watchdog, error) {
	if reg == nil {
		return nil, errors.New("watchdog: registry is required")
	}
	if store == nil {
		return nil, errors.New("watchdog: store is required")
	}
	if opts.Interval < 0 {
		return nil, errors.New("watchdog: interval must not be negative")
	}
	if opts.RepairRate < 0 || opts.RepairBurst < 0 {
		return nil, errors.New("watchdog: repair budget must not be negative")
	}
	opts = opts.withDefaults()

	observers := make([]Observer, 0, len(opts.Observers)+1)
	if opts.OnHealthCheck != nil || opts.OnRepair != nil {
		observers = append(observers, ObserverFuncs{OnHealthCheck: opts.OnHealthCheck, OnRepair: opts.OnRepair})
	}
	observers = append(observers, opts.Observers...)

	w := &Watchdog{
		reg:      reg,
		store:    store,
		accessor: NewAccessor(store),
		opts:     opts,
		logger:   opts.Logger,
		reporter: newReporter(opts.Logger, observers),
		limiter:  rate.NewLimiter(opts.RepairRate, opts.RepairBurst),
		now:      time.Now,
	}
	if *opts.Enabled {
		w.start()
	}
	return w, nil
}

// Registry returns the guarded registry.
func (w *Watchdog) Registry() *registry.Registry {
	return w.reg
}

// Interval returns the sweep interval.
func (w *Watchdog) Interval() time.Duration {
	return w.opts.Interval
}

// HealthStatus returns a copy of the most recent result, or nil before the
// first pass.
func (w *Watchdog) HealthStatus() *Result {
	return w.reporter.status()
}

// Running reports whether the scheduler is active.
func (w *Watchdog) Running() bool {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()
	return w.running
}

// Stop cancels the scheduler and detaches the listener, waiting for both to
// exit. It is safe to call more than once. Manual passes keep working.
func (w *Watchdog) Stop() {
	w.lifeMu.Lock()
	if !w.running {
		w.lifeMu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.cancel = nil
	w.lifeMu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Debug("watchdog stopped")
}
