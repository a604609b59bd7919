// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/policygap/services/llm"
)

const metricsNamespace = "policygap"

// Metrics holds the Prometheus metrics for the analysis API.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
type Metrics struct {
	// AnalysesTotal counts analysis runs by strategy and outcome.
	// Labels: strategy (deterministic, retrieval, both), status (success, error)
	AnalysesTotal *prometheus.CounterVec

	// GapsFoundTotal counts identified gaps by strategy and severity.
	GapsFoundTotal *prometheus.CounterVec

	// OracleCallSeconds measures single oracle call duration.
	// Labels: status (success, error)
	OracleCallSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "analyses_total",
				Help:      "Total analysis runs by strategy and status",
			},
			[]string{"strategy", "status"},
		),
		GapsFoundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "gaps_found_total",
				Help:      "Total gaps identified by strategy and severity",
			},
			[]string{"strategy", "severity"},
		),
		OracleCallSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "oracle_call_seconds",
				Help:      "Oracle call duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
			[]string{"status"},
		),
		registry: registry,
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// InstrumentedOracle wraps an Oracle and records call durations.
type InstrumentedOracle struct {
	inner   llm.Oracle
	metrics *Metrics
}

// NewInstrumentedOracle wraps oracle with call-duration metrics.
func NewInstrumentedOracle(oracle llm.Oracle, metrics *Metrics) *InstrumentedOracle {
	return &InstrumentedOracle{inner: oracle, metrics: metrics}
}

// Generate implements the Oracle interface.
func (i *InstrumentedOracle) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	start := time.Now()
	out, err := i.inner.Generate(ctx, prompt, params)
	status := "success"
	if err != nil {
		status = "error"
	}
	i.metrics.OracleCallSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return out, err
}
