// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package latency measures per-stage timing of the suggestion pipeline.
//
// A measurement is opened when an event enters the pipeline and accumulates
// named stage spans until it is snapshotted. The tracker is deliberately
// forgiving: operations on unknown measurement ids or stages are no-ops, so
// instrumentation can never fail a request.
package latency

import (
	"sync"
	"time"
)

// Pipeline stage names.
const (
	StageIngest            = "ingest"
	StageTranscriptParse   = "transcript_parse"
	StageContextRetrieval  = "context_retrieval"
	StageLLMInference      = "llm_inference"
	StageSuggestionPersist = "suggestion_persist"
	StageDelivery          = "delivery"
)

// Snapshot is the completed timing picture of one pipeline pass.
type Snapshot struct {
	// Total is the full wall-clock span from Track to the snapshot. It is
	// always at least as long as the longest stage.
	Total time.Duration `json:"total"`

	// Stages maps stage name to measured duration. Only completed stages
	// appear.
	Stages map[string]time.Duration `json:"stages"`
}

type measurement struct {
	startedAt time.Time
	open      map[string]time.Time
	done      map[string]time.Duration
}

// Tracker records in-flight pipeline measurements.
//
// # Thread Safety
//
// Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*measurement

	// now is injectable for tests.
	now func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[string]*measurement),
		now:    time.Now,
	}
}

// Track opens a measurement for the given id. Re-tracking an id restarts
// its measurement.
func (t *Tracker) Track(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[id] = &measurement{
		startedAt: t.now(),
		open:      make(map[string]time.Time),
		done:      make(map[string]time.Duration),
	}
}

// StartStage marks the beginning of a named stage. Unknown ids are ignored.
func (t *Tracker) StartStage(id, stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.active[id]
	if !ok {
		return
	}
	m.open[stage] = t.now()
}

// EndStage closes a named stage. Stages never started are ignored.
func (t *Tracker) EndStage(id, stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.active[id]
	if !ok {
		return
	}
	startedAt, ok := m.open[stage]
	if !ok {
		return
	}
	delete(m.open, stage)
	m.done[stage] = t.now().Sub(startedAt)
}

// Snapshot closes the measurement and returns its timing picture. Returns
// nil for unknown ids. Stages still open at snapshot time are dropped.
func (t *Tracker) Snapshot(id string) *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.active[id]
	if !ok {
		return nil
	}
	delete(t.active, id)

	stages := make(map[string]time.Duration, len(m.done))
	for stage, d := range m.done {
		stages[stage] = d
	}
	return &Snapshot{
		Total:  t.now().Sub(m.startedAt),
		Stages: stages,
	}
}

// Clear discards a measurement without reporting it.
func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
}
