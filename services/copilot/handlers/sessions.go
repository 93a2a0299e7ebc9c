// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/consent"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/lifecycle"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/middleware"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
)

// CreateSession handles POST /v1/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	var req datatypes.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidationFailed, "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = "copilot"
	}
	now := h.nowMillis()
	session := &datatypes.CopilotSession{
		OwnerID:   middleware.OwnerID(c),
		Status:    datatypes.SessionActive,
		StartedAt: now,
		Metadata:  datatypes.SessionMetadata{Mode: mode},
	}
	if req.ConsentGranted {
		session.Metadata.ConsentStatus = string(consent.StateGranted)
		session.Metadata.ConsentGrantedAt = now
	} else {
		session.Metadata.ConsentStatus = string(consent.StatePending)
	}

	if err := h.store.CreateSession(c.Request.Context(), session); err != nil {
		respondInternal(c, h.logger, "create_session", err)
		return
	}
	h.logger.Info("handlers.sessions: session created",
		"session_id", session.ID, "mode", mode, "consent_granted", req.ConsentGranted)
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GetSession handles GET /v1/sessions/:id.
func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":        session,
		"consent_status": consent.Derive(session, h.nowMillis()),
	})
}

// DeleteSession handles DELETE /v1/sessions/:id. Deletion is rejected while
// the session is active.
func (h *Handler) DeleteSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}
	if session.Status == datatypes.SessionActive {
		respondConflict(c, CodeSessionActive, session)
		return
	}
	if err := h.store.DeleteSession(c.Request.Context(), session.ID); err != nil {
		respondInternal(c, h.logger, "delete_session", err)
		return
	}
	h.logger.Info("handlers.sessions: session deleted", "session_id", session.ID)
	c.Status(http.StatusNoContent)
}

// StopSession handles POST /v1/sessions/:id/stop, the explicit terminal
// transition.
func (h *Handler) StopSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}

	stopped, err := h.lifecycle.Stop(c.Request.Context(), session.ID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotActive) {
			h.respondTerminalConflict(c, session.ID)
			return
		}
		respondInternal(c, h.logger, "stop_session", err)
		return
	}
	h.metrics.SessionTransitions.WithLabelValues(string(datatypes.SessionStopped)).Inc()
	c.JSON(http.StatusOK, gin.H{"session": stopped})
}

// Heartbeat handles POST /v1/sessions/:id/heartbeat, recording liveness.
func (h *Handler) Heartbeat(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}

	updated, err := h.lifecycle.Heartbeat(c.Request.Context(), session.ID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotActive) {
			h.respondTerminalConflict(c, session.ID)
			return
		}
		respondInternal(c, h.logger, "heartbeat", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": updated})
}

// UpdateConsent handles POST /v1/sessions/:id/consent. Granting after a
// revoke starts a fresh consent window; the old revoke timestamp no longer
// applies to future actions.
func (h *Handler) UpdateConsent(c *gin.Context) {
	var req datatypes.ConsentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidationFailed, "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}

	now := h.nowMillis()
	updated, err := h.store.UpdateSessionIf(c.Request.Context(), session.ID,
		func(s *datatypes.CopilotSession) error {
			if s.Status != datatypes.SessionActive {
				return errors.New("session is not active")
			}
			return nil
		},
		func(s *datatypes.CopilotSession) {
			switch req.Action {
			case "grant":
				s.Metadata.ConsentStatus = string(consent.StateGranted)
				s.Metadata.ConsentGrantedAt = now
				s.Metadata.ConsentRevokedAt = 0
			case "revoke":
				s.Metadata.ConsentStatus = string(consent.StateRevoked)
				s.Metadata.ConsentRevokedAt = now
			}
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			h.respondTerminalConflict(c, session.ID)
			return
		}
		respondInternal(c, h.logger, "update_consent", err)
		return
	}
	h.logger.Info("handlers.sessions: consent updated",
		"session_id", session.ID, "action", req.Action)
	c.JSON(http.StatusOK, gin.H{
		"session":        updated,
		"consent_status": consent.Derive(updated, now),
	})
}

// respondTerminalConflict re-reads the session and answers 409 with the
// post-transition snapshot, distinguishing expired from stopped.
func (h *Handler) respondTerminalConflict(c *gin.Context, sessionID string) {
	session, err := h.store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondNotFound(c)
		return
	}
	code := CodeSessionNotActive
	if session.Status == datatypes.SessionExpired {
		code = CodeSessionExpired
	}
	respondConflict(c, code, session)
}
