package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records the outcome of balance mutations.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	applies   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	conflicts prometheus.Counter
	published *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return nil
	}
	applies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_apply_total",
		Help: "Ledger apply calls by entry kind and outcome.",
	}, []string{"kind", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_apply_duration_seconds",
		Help:    "Time spent in apply, lock wait and durable write included.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"kind"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_conflict_retries_total",
		Help: "Apply attempts retried after an optimistic version conflict.",
	})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_feed_published_total",
		Help: "Committed entries handed to the feed publisher.",
	}, []string{"result"})
	reg.MustRegister(applies, duration, conflicts, published)
	return &LedgerMetrics{
		applies:   applies,
		duration:  duration,
		conflicts: conflicts,
		published: published,
	}
}

// ObserveApply counts one finished apply call.
func (m *LedgerMetrics) ObserveApply(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	kind = normalizeLabel(kind)
	m.applies.WithLabelValues(kind, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *LedgerMetrics) IncConflictRetry() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// AddPublished counts entries the feed relay published or failed to publish.
func (m *LedgerMetrics) AddPublished(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.published.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
