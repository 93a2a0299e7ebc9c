// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// EventType classifies copilot events.
type EventType string

const (
	EventTranscript EventType = "transcript"
	EventSystem     EventType = "system"
	EventSuggestion EventType = "suggestion"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
	SpeakerSystem      Speaker = "system"
)

// Redaction records one redacted span of a transcript turn.
//
// Start and End are byte offsets into the original (pre-redaction) text;
// the raw text itself is never stored.
type Redaction struct {
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// SuggestionPayload is the fixed shape a provider response is parsed into.
//
// SourceEventID references the transcript event the suggestion responds to.
// Fallback marks suggestions synthesized locally after a provider failure.
type SuggestionPayload struct {
	ShortAnswer   string   `json:"short_answer"`
	TalkingPoints []string `json:"talking_points,omitempty"`
	FollowUp      string   `json:"follow_up,omitempty"`
	Complexity    string   `json:"complexity,omitempty"`
	EdgeCases     []string `json:"edge_cases,omitempty"`
	Checklist     []string `json:"checklist,omitempty"`
	SourceEventID string   `json:"source_event_id,omitempty"`
	Fallback      bool     `json:"fallback,omitempty"`
}

// EventPayload is the per-type body of a CopilotEvent. Transcript events
// use Speaker/Text plus security flags; suggestion events use Suggestion.
type EventPayload struct {
	Speaker            Speaker            `json:"speaker,omitempty"`
	Text               string             `json:"text,omitempty"`
	Mode               string             `json:"mode,omitempty"`
	HasPromptInjection bool               `json:"has_prompt_injection,omitempty"`
	Redactions         []Redaction        `json:"redactions,omitempty"`
	Suggestion         *SuggestionPayload `json:"suggestion,omitempty"`
}

// CopilotEvent is one append-only entry in a session's ordered event log.
//
// Events are never mutated after creation. The total order within a session
// is (CreatedAt, ID) with ID as tie-break; CreatedAt is Unix milliseconds.
type CopilotEvent struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Type      EventType    `json:"event_type"`
	Payload   EventPayload `json:"payload"`
	CreatedAt int64        `json:"created_at"`
}

// After reports whether the event sorts strictly after the composite
// position (createdAt, id) in the session's total order.
func (e *CopilotEvent) After(createdAt int64, id string) bool {
	if e.CreatedAt != createdAt {
		return e.CreatedAt > createdAt
	}
	return e.ID > id
}
