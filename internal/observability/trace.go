package observability

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// maxDetail bounds how much of a repair reason is echoed per line.
const maxDetail = 120

// TraceWriter outputs human-readable trace information.
// It formats output with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

// WriteCheck writes a pass summary line.
// Format: [0.234s] Checked full: healthy (7 records, 2 repaired)
func (t *TraceWriter) WriteCheck(r watchdog.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Seconds()
	status := "healthy"
	if !r.IsHealthy {
		status = "UNHEALTHY"
	}
	fmt.Fprintf(t.writer, "[%.3fs] Checked %s: %s (%d records, %d repaired)\n",
		elapsed, r.Scope, status, len(r.Records), len(r.RepairedKeys))
	for _, e := range r.Errors {
		fmt.Fprintf(t.writer, "[%.3fs]   ERROR: %s\n", elapsed, e)
	}
}

// WriteRecord writes one record's state.
// Format: [0.234s]   users: corrupt -> repaired
func (t *TraceWriter) WriteRecord(rs watchdog.RecordStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Seconds()
	outcome := ""
	switch {
	case rs.Repaired:
		outcome = " -> repaired"
	case rs.Error != "":
		outcome = " -> " + rs.Error
	}
	fmt.Fprintf(t.writer, "[%.3fs]   %s: %s%s\n", elapsed, rs.Key, rs.State, outcome)
}

// WriteRepair writes a repair trace line.
// Format: [0.234s] Repaired users: missing required key
func (t *TraceWriter) WriteRepair(key, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] Repaired %s: %s\n", elapsed, key, truncate(reason, maxDetail))
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
