// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// HiringSignal is the categorical outcome recommendation of a summary report.
type HiringSignal string

const (
	SignalStrongHire       HiringSignal = "strong_hire"
	SignalHire             HiringSignal = "hire"
	SignalLeanHire         HiringSignal = "lean_hire"
	SignalLeanNoHire       HiringSignal = "lean_no_hire"
	SignalNoHire           HiringSignal = "no_hire"
	SignalInsufficientData HiringSignal = "insufficient_data"
)

// HiringSignals lists every valid signal value.
var HiringSignals = []HiringSignal{
	SignalStrongHire,
	SignalHire,
	SignalLeanHire,
	SignalLeanNoHire,
	SignalNoHire,
	SignalInsufficientData,
}

// RubricDimensions is the fixed set of dimensions every report scores.
var RubricDimensions = []string{
	"communication",
	"technical_depth",
	"problem_solving",
	"structure",
	"ownership",
	"culture_fit",
}

// RubricEntry scores one rubric dimension from 1 to 5 with supporting text.
type RubricEntry struct {
	Dimension      string `json:"dimension"`
	Score          int    `json:"score"`
	Evidence       string `json:"evidence"`
	Recommendation string `json:"recommendation"`
}

// InterviewReport is the normalized summary of a session.
//
// Normalization guarantees a structurally valid report regardless of what
// the provider returned: OverallScore in [0,100], HiringSignal one of the
// six enum values, Strengths/Weaknesses with at least two entries,
// NextSteps with at least three entries labeled "P1:", "P2:", ..., and a
// rubric entry for each fixed dimension scored 1-5.
type InterviewReport struct {
	SessionID    string        `json:"session_id"`
	OverallScore int           `json:"overall_score"`
	HiringSignal HiringSignal  `json:"hiring_signal"`
	Strengths    []string      `json:"strengths"`
	Weaknesses   []string      `json:"weaknesses"`
	NextSteps    []string      `json:"next_steps"`
	Rubric       []RubricEntry `json:"rubric"`
	Degraded     bool          `json:"degraded,omitempty"`
}
