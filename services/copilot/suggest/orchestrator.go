// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package suggest generates live answer suggestions from interview
// transcripts.
//
// The orchestrator decides when a transcript turn warrants a suggestion,
// builds a bounded prompt from the recent transcript window, calls the
// provider chain, and persists the result as a suggestion event referencing
// the source transcript turn. Provider failure of any kind degrades to a
// locally synthesized fallback event; ingestion success never depends on
// suggestion success.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/latency"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
	"github.com/samhanoun/finalround-clone-sub001/services/llm"
)

// FallbackMessage is the short answer of a synthesized fallback suggestion.
const FallbackMessage = "Suggestions are temporarily unavailable. Keep structuring your answer: restate the question, outline your approach, then walk through it."

var errMissingShortAnswer = errors.New("provider response missing short_answer")

// Completer is the slice of the provider chain the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	// TranscriptWindow is how many recent transcript turns feed the prompt.
	TranscriptWindow int

	// Timeout bounds the provider call.
	Timeout time.Duration
}

// Orchestrator produces and persists suggestion events.
//
// # Thread Safety
//
// Safe for concurrent use.
type Orchestrator struct {
	store   store.Store
	llm     Completer
	cfg     Config
	logger  *slog.Logger
	tracker *latency.Tracker
	tracer  trace.Tracer
}

// NewOrchestrator builds an Orchestrator. A nil logger discards logs.
func NewOrchestrator(s store.Store, completer Completer, cfg Config, tracker *latency.Tracker, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TranscriptWindow <= 0 {
		cfg.TranscriptWindow = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Orchestrator{
		store:   s,
		llm:     completer,
		cfg:     cfg,
		logger:  logger,
		tracker: tracker,
		tracer:  otel.Tracer("copilot/suggest"),
	}
}

// ShouldSuggest applies the trigger rules for a just-ingested event.
//
// Suggestions fire only for interviewer transcript turns with auto-suggest
// enabled and no injection flag. Flagged text never reaches the model.
func ShouldSuggest(event *datatypes.CopilotEvent, autoSuggest bool) bool {
	return autoSuggest &&
		event.Type == datatypes.EventTranscript &&
		event.Payload.Speaker == datatypes.SpeakerInterviewer &&
		!event.Payload.HasPromptInjection
}

// Generate produces a suggestion for the given source transcript event and
// persists it. Always returns a persisted event: on any provider failure a
// fallback system suggestion is stored instead, and only a storage failure
// on the fallback itself yields an error.
func (o *Orchestrator) Generate(ctx context.Context, source *datatypes.CopilotEvent) (*datatypes.CopilotEvent, error) {
	ctx, span := o.tracer.Start(ctx, "suggest.generate",
		trace.WithAttributes(
			attribute.String("session.id", source.SessionID),
			attribute.String("source.event_id", source.ID),
		))
	defer span.End()

	payload, err := o.complete(ctx, source)
	if err != nil {
		o.logger.Warn("suggest.orchestrator: provider failed, using fallback",
			"session_id", source.SessionID,
			"source_event_id", source.ID,
			"error", err)
		span.RecordError(err)
		return o.persistFallback(ctx, source)
	}
	payload.SourceEventID = source.ID

	event := &datatypes.CopilotEvent{
		SessionID: source.SessionID,
		Type:      datatypes.EventSuggestion,
		Payload:   datatypes.EventPayload{Suggestion: payload},
	}
	o.startStage(source.ID, latency.StageSuggestionPersist)
	persisted, err := o.store.AppendEvent(ctx, event)
	o.endStage(source.ID, latency.StageSuggestionPersist)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return persisted, nil
}

// complete runs retrieval, the provider call, and response parsing.
func (o *Orchestrator) complete(ctx context.Context, source *datatypes.CopilotEvent) (*datatypes.SuggestionPayload, error) {
	o.startStage(source.ID, latency.StageContextRetrieval)
	recent, err := o.store.RecentTranscripts(ctx, source.SessionID, o.cfg.TranscriptWindow)
	o.endStage(source.ID, latency.StageContextRetrieval)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	o.startStage(source.ID, latency.StageLLMInference)
	raw, err := o.llm.Complete(callCtx, buildMessages(recent), llm.CompletionOptions{
		Temperature: ptr(float32(0.3)),
		MaxTokens:   ptr(1024),
	})
	o.endStage(source.ID, latency.StageLLMInference)
	if err != nil {
		return nil, err
	}

	var payload datatypes.SuggestionPayload
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, err
	}
	if payload.ShortAnswer == "" {
		return nil, errMissingShortAnswer
	}
	return &payload, nil
}

// persistFallback stores the locally synthesized degraded suggestion.
func (o *Orchestrator) persistFallback(ctx context.Context, source *datatypes.CopilotEvent) (*datatypes.CopilotEvent, error) {
	event := &datatypes.CopilotEvent{
		SessionID: source.SessionID,
		Type:      datatypes.EventSystem,
		Payload: datatypes.EventPayload{
			Suggestion: &datatypes.SuggestionPayload{
				ShortAnswer:   FallbackMessage,
				SourceEventID: source.ID,
				Fallback:      true,
			},
		},
	}
	return o.store.AppendEvent(ctx, event)
}

func (o *Orchestrator) startStage(id, stage string) {
	if o.tracker != nil {
		o.tracker.StartStage(id, stage)
	}
}

func (o *Orchestrator) endStage(id, stage string) {
	if o.tracker != nil {
		o.tracker.EndStage(id, stage)
	}
}

func ptr[T any](v T) *T { return &v }
