// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability collects Prometheus metrics for the copilot
// service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/latency"
)

const namespace = "copilot"

// Metrics holds every collector of the service.
type Metrics struct {
	// IngestTotal counts ingest requests by outcome
	// (created, blocked, rejected, error).
	IngestTotal *prometheus.CounterVec

	// SuggestionTotal counts suggestion generations by outcome
	// (ok, fallback).
	SuggestionTotal *prometheus.CounterVec

	// SessionTransitions counts terminal transitions by target state
	// (stopped, expired).
	SessionTransitions *prometheus.CounterVec

	// StreamConnections gauges currently open stream connections.
	StreamConnections prometheus.Gauge

	// StageSeconds observes per-stage pipeline latency.
	StageSeconds *prometheus.HistogramVec

	// PipelineSeconds observes full ingest-pipeline latency.
	PipelineSeconds prometheus.Histogram
}

// New registers all collectors against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "Ingest requests by outcome.",
		}, []string{"outcome"}),
		SuggestionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Suggestion generations by outcome.",
		}, []string{"outcome"}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Terminal session transitions by target state.",
		}, []string{"to"}),
		StreamConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Currently open stream connections.",
		}),
		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_seconds",
			Help:      "Per-stage ingest pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		PipelineSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_seconds",
			Help:      "Full ingest pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// NopMetrics returns collectors registered on a throwaway registry, for
// tests and defaults.
func NopMetrics() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveSnapshot records one latency snapshot into the histograms.
func (m *Metrics) ObserveSnapshot(snap *latency.Snapshot) {
	if snap == nil {
		return
	}
	m.PipelineSeconds.Observe(snap.Total.Seconds())
	for stage, d := range snap.Stages {
		m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
	}
}
