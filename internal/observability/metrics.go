package observability

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

var _ watchdog.Observer = (*Metrics)(nil)

// Metrics exports watchdog activity as Prometheus series on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	checks      *prometheus.CounterVec
	repairs     *prometheus.CounterVec
	lastCheck   prometheus.Gauge
	recordState *prometheus.GaugeVec
	healthy     prometheus.Gauge
}

// NewMetrics creates a Metrics collector with a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storewatch",
			Name:      "checks_total",
			Help:      "Total number of health check passes",
		}, []string{"scope", "healthy"}),
		repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storewatch",
			Name:      "repairs_total",
			Help:      "Total number of records reset to their default",
		}, []string{"key", "reason"}),
		lastCheck: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "storewatch",
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the most recent pass",
		}),
		recordState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storewatch",
			Name:      "record_state",
			Help:      "1 for the state each record was last observed in",
		}, []string{"key", "state"}),
		healthy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "storewatch",
			Name:      "healthy",
			Help:      "1 if the most recent pass was healthy",
		}),
	}
}

// Registry returns the registry the series are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HealthChecked implements watchdog.Observer.
func (m *Metrics) HealthChecked(r watchdog.Result) {
	m.checks.WithLabelValues(string(r.Scope), boolLabel(r.IsHealthy)).Inc()
	m.lastCheck.Set(float64(r.Timestamp.UnixNano()) / 1e9)
	if r.IsHealthy {
		m.healthy.Set(1)
	} else {
		m.healthy.Set(0)
	}

	for _, rs := range r.Records {
		m.recordState.DeletePartialMatch(prometheus.Labels{"key": rs.Key})
		m.recordState.WithLabelValues(rs.Key, rs.State.String()).Set(1)
	}
}

// Repaired implements watchdog.Observer.
func (m *Metrics) Repaired(key, reason string) {
	m.repairs.WithLabelValues(key, reasonLabel(reason)).Inc()
}

// reasonLabel keeps label cardinality bounded by dropping error detail.
func reasonLabel(reason string) string {
	if i := strings.Index(reason, ":"); i >= 0 {
		reason = reason[:i]
	}
	return strings.TrimSpace(reason)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
