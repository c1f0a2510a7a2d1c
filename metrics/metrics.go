// Package metrics exports Prometheus counters for operator kernels and
// coefficient management. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mgkernel"

// Metrics holds the collectors of one operator
type Metrics struct {
	// kernelCalls counts kernel invocations.
	// Labels: kernel (apply, flux, norm, gsrb, jacobi, extrap), level
	kernelCalls *prometheus.CounterVec

	// cellUpdates counts cells visited by kernels.
	// Labels: kernel
	cellUpdates *prometheus.CounterVec

	// kernelDuration measures wall time per kernel invocation.
	// Labels: kernel
	kernelDuration *prometheus.HistogramVec

	// derivations counts coefficient re-derivations from a finer level.
	// Labels: field (a, b)
	derivations *prometheus.CounterVec

	// invalidations counts level slots marked invalid.
	// Labels: field (a, b)
	invalidations *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		kernelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "calls_total",
			Help:      "Operator kernel invocations",
		}, []string{"kernel", "level"}),
		cellUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "cells_total",
			Help:      "Cells visited by operator kernels",
		}, []string{"kernel"}),
		kernelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "duration_seconds",
			Help:      "Operator kernel wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"kernel"}),
		derivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coefficients",
			Name:      "derivations_total",
			Help:      "Coefficient levels re-derived by coarsening",
		}, []string{"field"}),
		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coefficients",
			Name:      "invalidations_total",
			Help:      "Coefficient level slots marked invalid",
		}, []string{"field"}),
	}
}

// ObserveKernel records one kernel invocation over cells cells that started at start
func (m *Metrics) ObserveKernel(kernel, level string, cells int, start time.Time) {
	if m == nil {
		return
	}
	m.kernelCalls.WithLabelValues(kernel, level).Inc()
	m.cellUpdates.WithLabelValues(kernel).Add(float64(cells))
	m.kernelDuration.WithLabelValues(kernel).Observe(time.Since(start).Seconds())
}

// ObserveDerivation records a re-derivation of field
func (m *Metrics) ObserveDerivation(field string) {
	if m == nil {
		return
	}
	m.derivations.WithLabelValues(field).Inc()
}

// ObserveInvalidation records n slots of field marked invalid
func (m *Metrics) ObserveInvalidation(field string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.invalidations.WithLabelValues(field).Add(float64(n))
}
