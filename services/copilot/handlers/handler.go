// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/latency"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/lifecycle"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/middleware"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/observability"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/report"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/suggest"
)

// Handler bundles the dependencies of the HTTP surface.
type Handler struct {
	store     store.Store
	lifecycle *lifecycle.Manager
	suggester *suggest.Orchestrator
	reports   *report.Generator
	tracker   *latency.Tracker
	metrics   *observability.Metrics
	logger    *slog.Logger

	pollInterval time.Duration

	// nowMillis is injectable for tests.
	nowMillis func() int64
}

// Config carries handler tunables.
type Config struct {
	// PollInterval is the sleep between streaming-loop iterations.
	PollInterval time.Duration
}

// New builds the Handler. A nil logger discards logs; nil metrics are
// replaced with a no-op registry-less collector set.
func New(
	s store.Store,
	lc *lifecycle.Manager,
	suggester *suggest.Orchestrator,
	reports *report.Generator,
	tracker *latency.Tracker,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if tracker == nil {
		tracker = latency.NewTracker()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Handler{
		store:        s,
		lifecycle:    lc,
		suggester:    suggester,
		reports:      reports,
		tracker:      tracker,
		metrics:      metrics,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		nowMillis:    func() int64 { return time.Now().UnixMilli() },
	}
}

// loadOwnedSession fetches a session, runs the lazy expiry check, and
// enforces ownership. Cross-account access and missing sessions are both
// answered with 404; on those paths the response is already written and
// ok is false.
func (h *Handler) loadOwnedSession(c *gin.Context, sessionID string) (*datatypes.CopilotSession, bool) {
	session, err := h.lifecycle.CheckExpiry(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			respondNotFound(c)
			return nil, false
		}
		respondInternal(c, h.logger, "load_session", err)
		return nil, false
	}
	if session.OwnerID != middleware.OwnerID(c) {
		respondNotFound(c)
		return nil, false
	}
	return session, true
}
