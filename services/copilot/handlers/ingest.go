// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/consent"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/latency"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/middleware"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/security"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/suggest"
)

// IngestEvent handles POST /v1/sessions/:id/events.
//
// Pipeline: validate, lazy expiry check, consent gate, sanitize, persist
// transcript, then optionally generate a suggestion. Suggestion failure is
// isolated: the transcript event is already persisted and the request still
// succeeds with a fallback suggestion. Per-stage latency is merged into the
// response and logged once per request.
func (h *Handler) IngestEvent(c *gin.Context) {
	var req datatypes.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		respondError(c, http.StatusBadRequest, CodeValidationFailed, "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		respondError(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	// The event id doubles as the latency-measurement key; assigning it
	// here lets the ingest stage start before the event is persisted.
	eventID := uuid.NewString()
	h.tracker.Track(eventID)
	defer h.tracker.Clear(eventID)
	h.tracker.StartStage(eventID, latency.StageIngest)

	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		h.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		return
	}
	if session.Status != datatypes.SessionActive {
		if session.Status == datatypes.SessionExpired &&
			session.Metadata.ExpiredReason == datatypes.ExpiredReasonHeartbeat {
			h.metrics.SessionTransitions.WithLabelValues(string(datatypes.SessionExpired)).Inc()
		}
		h.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		h.respondTerminalConflict(c, session.ID)
		return
	}
	if decision := consent.CheckIngest(session, h.nowMillis()); !decision.Allowed {
		h.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		respondError(c, http.StatusForbidden, decision.Reason, "ingestion not permitted")
		return
	}

	h.tracker.StartStage(eventID, latency.StageTranscriptParse)
	sanitized := security.Sanitize(req.Text)
	h.tracker.EndStage(eventID, latency.StageTranscriptParse)

	event := &datatypes.CopilotEvent{
		ID:        eventID,
		SessionID: session.ID,
		Type:      datatypes.EventType(req.EventType),
		Payload: datatypes.EventPayload{
			Speaker:            datatypes.Speaker(req.Speaker),
			Text:               sanitized.Sanitized,
			Mode:               session.Metadata.Mode,
			HasPromptInjection: sanitized.HasPromptInjection,
			Redactions:         sanitized.Redactions,
		},
	}
	persisted, err := h.store.AppendEvent(c.Request.Context(), event)
	if err != nil {
		h.metrics.IngestTotal.WithLabelValues("error").Inc()
		respondInternal(c, h.logger, "ingest_event", err)
		return
	}
	h.tracker.EndStage(eventID, latency.StageIngest)

	var suggestion *datatypes.CopilotEvent
	if suggest.ShouldSuggest(persisted, req.AutoSuggestEnabled()) {
		suggestion, err = h.suggester.Generate(c.Request.Context(), persisted)
		if err != nil {
			// Even the fallback could not be persisted. The transcript
			// event stands; report the ingest as succeeded without one.
			h.logger.Error("handlers.ingest: suggestion persist failed",
				"session_id", session.ID, "event_id", persisted.ID, "error", err)
			suggestion = nil
		}
		h.observeSuggestion(suggestion)
	}

	snap := h.tracker.Snapshot(eventID)
	h.metrics.ObserveSnapshot(snap)
	h.metrics.IngestTotal.WithLabelValues(ingestOutcome(sanitized.HasPromptInjection)).Inc()
	h.logIngest(c, session.ID, persisted, sanitized.HasPromptInjection, snap)

	c.JSON(http.StatusCreated, gin.H{
		"event":      persisted,
		"suggestion": suggestion,
		"blocked":    sanitized.HasPromptInjection,
		"redactions": sanitized.Redactions,
		"latency":    snap,
	})
}

func (h *Handler) observeSuggestion(suggestion *datatypes.CopilotEvent) {
	if suggestion == nil {
		return
	}
	outcome := "ok"
	if suggestion.Payload.Suggestion != nil && suggestion.Payload.Suggestion.Fallback {
		outcome = "fallback"
	}
	h.metrics.SuggestionTotal.WithLabelValues(outcome).Inc()
}

func ingestOutcome(blocked bool) string {
	if blocked {
		return "blocked"
	}
	return "created"
}

// logIngest emits the one structured latency line per request used for
// offline SLA analysis.
func (h *Handler) logIngest(c *gin.Context, sessionID string, event *datatypes.CopilotEvent, blocked bool, snap *latency.Snapshot) {
	attrs := []any{
		"request_id", middleware.GetRequestID(c),
		"session_id", sessionID,
		"event_id", event.ID,
		"event_type", event.Type,
		"blocked", blocked,
	}
	if snap != nil {
		attrs = append(attrs, "total_ms", snap.Total.Milliseconds())
		for stage, d := range snap.Stages {
			attrs = append(attrs, "stage_"+stage+"_ms", d.Milliseconds())
		}
	}
	h.logger.Info("handlers.ingest: event ingested", attrs...)
}
