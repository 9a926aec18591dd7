// SPDX-License-Identifier: MIT

// Package metrics exposes evaluator counters through a small observer
// interface with a no-op and a Prometheus implementation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels one evaluation.
type Outcome string

const (
	// OutcomeScored is a finite score.
	OutcomeScored Outcome = "scored"
	// OutcomeRejected is a zero-probability sample.
	OutcomeRejected Outcome = "rejected"
	// OutcomeError is a configuration or programming failure.
	OutcomeError Outcome = "error"
)

// Observer receives evaluator events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveEvaluation(o Outcome, d time.Duration)
	ObserveFactorizationFailure()
	ObserveDeviceFallback()
}

// Noop discards all events.
type Noop struct{}

func (Noop) ObserveEvaluation(Outcome, time.Duration) {}
func (Noop) ObserveFactorizationFailure()             {}
func (Noop) ObserveDeviceFallback()                   {}

// Namespace prefixes every series.
const Namespace = "bayeseor"

// Prometheus records events as Prometheus series.
type Prometheus struct {
	evaluations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	factorization prometheus.Counter
	fallbacks     prometheus.Counter
}

// NewPrometheus registers the evaluator series on reg. A nil reg uses the
// default registerer. Registering twice on the same registry panics.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Prometheus{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "posterior",
			Name:      "evaluations_total",
			Help:      "Posterior evaluations by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "posterior",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of one posterior evaluation",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"outcome"}),
		factorization: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "linalg",
			Name:      "factorization_failures_total",
			Help:      "Cholesky factorizations that reported a non-zero flag",
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "linalg",
			Name:      "device_fallbacks_total",
			Help:      "Accelerator probes that fell back to the CPU strategy",
		}),
	}
}

// ObserveEvaluation implements Observer.
func (p *Prometheus) ObserveEvaluation(o Outcome, d time.Duration) {
	p.evaluations.WithLabelValues(string(o)).Inc()
	p.duration.WithLabelValues(string(o)).Observe(d.Seconds())
}

// ObserveFactorizationFailure implements Observer.
func (p *Prometheus) ObserveFactorizationFailure() { p.factorization.Inc() }

// ObserveDeviceFallback implements Observer.
func (p *Prometheus) ObserveDeviceFallback() { p.fallbacks.Inc() }
