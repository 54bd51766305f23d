// Package metrics holds the Prometheus collectors for structure analysis.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pdbstat"

// Collectors groups the engine's metrics. A nil *Collectors records nothing,
// so callers never need to check.
type Collectors struct {
	validations   *prometheus.CounterVec
	analyses      prometheus.Counter
	comparisons   prometheus.Counter
	parseFailures prometheus.Counter
	duration      prometheus.Histogram
	atoms         prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "File validations by outcome (ok or the rejection reason).",
		}, []string{"result"}),
		analyses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Structures parsed and summarised.",
		}),
		comparisons: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Structure pairs compared.",
		}),
		parseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Files rejected by the PDB reader.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time to parse and summarise one structure.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		atoms: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "structure_atoms",
			Help:      "Atoms per analysed structure.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}),
	}
}

// ObserveValidation counts one validation. result is "ok" or a rejection reason.
func (c *Collectors) ObserveValidation(result string) {
	if c == nil {
		return
	}
	c.validations.WithLabelValues(result).Inc()
}

// ObserveAnalysis records a successful analysis.
func (c *Collectors) ObserveAnalysis(d time.Duration, atoms int) {
	if c == nil {
		return
	}
	c.analyses.Inc()
	c.duration.Observe(d.Seconds())
	c.atoms.Observe(float64(atoms))
}

func (c *Collectors) ObserveComparison() {
	if c == nil {
		return
	}
	c.comparisons.Inc()
}

func (c *Collectors) ObserveParseFailure() {
	if c == nil {
		return
	}
	c.parseFailures.Inc()
}
