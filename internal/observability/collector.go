// Package observability provides metrics collection and tracing for watchdog passes.
package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// CheckMetrics holds the outcome of a single pass.
type CheckMetrics struct {
	Scope    watchdog.Scope
	Healthy  bool
	Records  int
	Repaired int
	Errors   int
	At       time.Time
}

// RepairMetrics records a repair event.
type RepairMetrics struct {
	Key    string
	Reason string
}

// SessionMetrics aggregates metrics for an entire session.
type SessionMetrics struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TotalChecks     int       `json:"total_checks"`
	FullSweeps      int       `json:"full_sweeps"`
	KeyChecks       int       `json:"key_checks"`
	ForcedRepairs   int       `json:"forced_repairs"`
	UnhealthyPasses int       `json:"unhealthy_passes"`
	TotalRepairs    int       `json:"total_repairs"`
	TotalErrors     int       `json:"total_errors"`
	LastCheck       time.Time `json:"last_check"`
}

// FormatParts returns the compact pieces of a one-line stats summary.
func (m *SessionMetrics) FormatParts() []string {
	if m == nil {
		return nil
	}
	var parts []string

	duration := m.EndTime.Sub(m.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	parts = append(parts, plural(m.TotalChecks, "check"))
	if m.TotalRepairs > 0 {
		parts = append(parts, plural(m.TotalRepairs, "repair"))
	}
	if m.TotalErrors > 0 {
		parts = append(parts, plural(m.TotalErrors, "error"))
	}
	return parts
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// SessionCollector accumulates metrics across a session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime       time.Time
	totalChecks     int
	fullSweeps      int
	keyChecks       int
	forcedRepairs   int
	unhealthyPasses int
	totalRepairs    int
	totalErrors     int
	lastCheck       time.Time
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordCheck records metrics for a pass.
func (c *SessionCollector) RecordCheck(m CheckMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalChecks++
	switch m.Scope {
	case watchdog.ScopeFull:
		c.fullSweeps++
	case watchdog.ScopeKey:
		c.keyChecks++
	case watchdog.ScopeForce:
		c.forcedRepairs++
	}
	if !m.Healthy {
		c.unhealthyPasses++
	}
	c.totalErrors += m.Errors
	c.lastCheck = m.At
}

// RecordResult records metrics from a watchdog result.
func (c *SessionCollector) RecordResult(r watchdog.Result) {
	c.RecordCheck(CheckMetrics{
		Scope:    r.Scope,
		Healthy:  r.IsHealthy,
		Records:  len(r.Records),
		Repaired: len(r.RepairedKeys),
		Errors:   len(r.Errors),
		At:       r.Timestamp,
	})
}

// RecordRepair records a repair event.
func (c *SessionCollector) RecordRepair(_ RepairMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRepairs++
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:       c.startTime,
		EndTime:         time.Now(),
		TotalChecks:     c.totalChecks,
		FullSweeps:      c.fullSweeps,
		KeyChecks:       c.keyChecks,
		ForcedRepairs:   c.forcedRepairs,
		UnhealthyPasses: c.unhealthyPasses,
		TotalRepairs:    c.totalRepairs,
		TotalErrors:     c.totalErrors,
		LastCheck:       c.lastCheck,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalChecks = 0
	c.fullSweeps = 0
	c.keyChecks = 0
	c.forcedRepairs = 0
	c.unhealthyPasses = 0
	c.totalRepairs = 0
	c.totalErrors = 0
	c.lastCheck = time.Time{}
}
