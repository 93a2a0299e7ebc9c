// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report turns session transcripts into normalized interview
// summaries.
//
// Normalize is a total function over arbitrary provider output: null,
// empty objects, wrong-typed fields and out-of-range scores all yield a
// structurally valid report. Callers therefore never branch on report
// shape, only on Degraded.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

const (
	minStrengths  = 2
	minWeaknesses = 2
	minNextSteps  = 3
)

var (
	fillerStrengths = []string{
		"Engaged with the interview questions.",
		"Maintained a professional tone throughout the session.",
	}
	fillerWeaknesses = []string{
		"Insufficient transcript signal to assess in depth.",
		"Limited evidence of structured problem decomposition.",
	}
	fillerNextSteps = []string{
		"Practice structuring answers with a clear framework.",
		"Rehearse concise summaries of past projects.",
		"Prepare clarifying questions to ask interviewers.",
	}
)

// Normalize parses raw provider output into a guaranteed-valid report.
//
// Degraded is set when the input was unusable or materially incomplete and
// filler content had to be synthesized.
func Normalize(sessionID string, raw string) *datatypes.InterviewReport {
	var fields map[string]json.RawMessage
	parsed := json.Unmarshal([]byte(extractJSON(raw)), &fields) == nil && fields != nil

	r := &datatypes.InterviewReport{
		SessionID: sessionID,
		Degraded:  !parsed,
	}

	r.OverallScore = clampScore(intField(fields, "overall_score"), 0, 100)
	r.HiringSignal = normalizeSignal(stringField(fields, "hiring_signal"))
	if r.HiringSignal == datatypes.SignalInsufficientData && stringField(fields, "hiring_signal") != string(datatypes.SignalInsufficientData) {
		r.Degraded = true
	}

	r.Strengths = padList(stringListField(fields, "strengths"), fillerStrengths, minStrengths, &r.Degraded)
	r.Weaknesses = padList(stringListField(fields, "weaknesses"), fillerWeaknesses, minWeaknesses, &r.Degraded)
	r.NextSteps = labelNextSteps(padList(stringListField(fields, "next_steps"), fillerNextSteps, minNextSteps, &r.Degraded))
	r.Rubric = normalizeRubric(fields, &r.Degraded)

	return r
}

// Fallback returns the fully degraded report used when no provider output
// exists at all.
func Fallback(sessionID string) *datatypes.InterviewReport {
	return Normalize(sessionID, "")
}

// =============================================================================
// Field Extraction
// =============================================================================

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// intField tolerates both numbers and numeric strings; anything else is -1.
func intField(fields map[string]json.RawMessage, key string) int {
	raw, ok := fields[key]
	if !ok {
		return -1
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int(f)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		var f2 float64
		if json.Unmarshal([]byte(s), &f2) == nil {
			return int(f2)
		}
	}
	return -1
}

// stringListField keeps only non-empty string elements, dropping wrong-typed
// entries instead of failing.
func stringListField(fields map[string]json.RawMessage, key string) []string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) != nil {
		return nil
	}
	var out []string
	for _, e := range elems {
		var s string
		if json.Unmarshal(e, &s) == nil && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// =============================================================================
// Normalization Rules
// =============================================================================

func clampScore(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeSignal(s string) datatypes.HiringSignal {
	candidate := datatypes.HiringSignal(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range datatypes.HiringSignals {
		if candidate == valid {
			return valid
		}
	}
	return datatypes.SignalInsufficientData
}

func padList(items, filler []string, min int, degraded *bool) []string {
	if len(items) >= min {
		return items
	}
	*degraded = true
	for _, f := range filler {
		if len(items) >= min {
			break
		}
		items = append(items, f)
	}
	return items
}

// labelNextSteps enforces the P1:, P2:, ... priority labels.
func labelNextSteps(steps []string) []string {
	out := make([]string, len(steps))
	for i, step := range steps {
		label := fmt.Sprintf("P%d:", i+1)
		trimmed := strings.TrimSpace(step)
		if rest, ok := strings.CutPrefix(trimmed, label); ok {
			trimmed = strings.TrimSpace(rest)
		}
		out[i] = label + " " + trimmed
	}
	return out
}

// normalizeRubric guarantees one entry per fixed dimension, scored 1-5.
// Provider entries for unknown dimensions are dropped.
func normalizeRubric(fields map[string]json.RawMessage, degraded *bool) []datatypes.RubricEntry {
	provided := map[string]datatypes.RubricEntry{}
	if raw, ok := fields["rubric"]; ok {
		var entries []datatypes.RubricEntry
		if json.Unmarshal(raw, &entries) == nil {
			for _, e := range entries {
				provided[strings.ToLower(strings.TrimSpace(e.Dimension))] = e
			}
		}
	}

	out := make([]datatypes.RubricEntry, 0, len(datatypes.RubricDimensions))
	for _, dim := range datatypes.RubricDimensions {
		entry, ok := provided[dim]
		if !ok {
			*degraded = true
			entry = datatypes.RubricEntry{
				Dimension:      dim,
				Score:          3,
				Evidence:       "No assessable evidence in transcript.",
				Recommendation: "Gather more signal in a follow-up conversation.",
			}
		}
		entry.Dimension = dim
		entry.Score = clampScore(entry.Score, 1, 5)
		if entry.Evidence == "" {
			entry.Evidence = "No assessable evidence in transcript."
		}
		if entry.Recommendation == "" {
			entry.Recommendation = "Gather more signal in a follow-up conversation."
		}
		out = append(out, entry)
	}
	return out
}

// extractJSON returns the outermost {...} object in raw, tolerating code
// fences and surrounding prose.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
