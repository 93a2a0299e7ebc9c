// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the copilot service.
//
// Every error response carries a stable machine-readable code instead of
// free text. Internal failures expose only a correlation request id; the
// diagnostic detail stays in server logs. Ownership violations return 404
// rather than 403 so the API never confirms the existence of another
// account's resources.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/middleware"
)

// Stable error codes of the HTTP surface.
const (
	CodeValidationFailed = "validation_failed"
	CodeUnauthenticated  = "unauthenticated"
	CodeSessionNotFound  = "session_not_found"
	CodeSessionNotActive = "session_not_active"
	CodeSessionExpired   = "session_expired"
	CodeSessionActive    = "session_active"
	CodeRateLimited      = "rate_limited"
	CodeInternalError    = "internal_error"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error   errorBody                 `json:"error"`
	Session *datatypes.CopilotSession `json:"session,omitempty"`
}

// respondError writes a machine-readable error with the given status.
func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope{
		Error: errorBody{Code: code, Message: message},
	})
}

// respondConflict writes a 409 carrying the current session snapshot, so
// clients that raced a terminal transition see the post-transition state.
func respondConflict(c *gin.Context, code string, session *datatypes.CopilotSession) {
	c.AbortWithStatusJSON(http.StatusConflict, errorEnvelope{
		Error:   errorBody{Code: code, Message: "session is " + string(session.Status)},
		Session: session,
	})
}

// respondNotFound is used both for genuinely missing sessions and for
// cross-account access.
func respondNotFound(c *gin.Context) {
	respondError(c, http.StatusNotFound, CodeSessionNotFound, "session not found")
}

// respondInternal logs the full error server-side and returns only the
// correlation id to the client.
func respondInternal(c *gin.Context, logger *slog.Logger, op string, err error) {
	requestID := middleware.GetRequestID(c)
	logger.Error("handlers: internal error",
		"op", op,
		"request_id", requestID,
		"error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorEnvelope{
		Error: errorBody{
			Code:      CodeInternalError,
			Message:   "internal error",
			RequestID: requestID,
		},
	})
}
