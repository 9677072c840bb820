package observability

import (
	"sync"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// Verify CLIHooks implements watchdog.Observer at compile time.
var _ watchdog.Observer = (*CLIHooks)(nil)

// CLIHooks implements watchdog.Observer for CLI observability.
// It supports configurable verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Passes and repairs
//   - 2: Passes, repairs and every record's state
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// HealthChecked is called after every published pass.
func (h *CLIHooks) HealthChecked(r watchdog.Result) {
	h.mu.Lock()
	level := h.level
	collector := h.collector
	writer := h.writer
	h.mu.Unlock()

	if collector != nil {
		collector.RecordResult(r)
	}

	if level >= 1 && writer != nil {
		writer.WriteCheck(r)
	}
	if level >= 2 && writer != nil {
		for _, rs := range r.Records {
			writer.WriteRecord(rs)
		}
	}
}

// Repaired is called after every successful repair.
func (h *CLIHooks) Repaired(key, reason string) {
	h.mu.Lock()
	level := h.level
	collector := h.collector
	writer := h.writer
	h.mu.Unlock()

	if collector != nil {
		collector.RecordRepair(RepairMetrics{Key: key, Reason: reason})
	}

	if level >= 1 && writer != nil {
		writer.WriteRepair(key, reason)
	}
}
