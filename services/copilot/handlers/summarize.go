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
)

// Summarize handles POST /v1/sessions/:id/summarize.
//
// The response is always a structurally valid report; provider failure or
// malformed output degrades to filler content marked Degraded rather than
// surfacing an error.
func (h *Handler) Summarize(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}

	rep, err := h.reports.Summarize(c.Request.Context(), session.ID)
	if err != nil {
		respondInternal(c, h.logger, "summarize", err)
		return
	}
	h.logger.Info("handlers.summarize: report generated",
		"session_id", session.ID,
		"degraded", rep.Degraded,
		"hiring_signal", rep.HiringSignal)
	c.JSON(http.StatusOK, gin.H{"report": rep})
}
