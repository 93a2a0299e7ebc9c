// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the HTTP surface onto a gin engine.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/handlers"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/middleware"
)

// Register mounts every route. Health and metrics stay outside the
// authenticated group; everything under /v1 requires a bearer token and is
// rate limited per identity.
func Register(r *gin.Engine, h *handlers.Handler, verifier middleware.TokenVerifier, limiter *middleware.RateLimiter) {
	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(middleware.RequestID(), middleware.Auth(verifier), limiter.Middleware())

	sessions := v1.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.DeleteSession)
	sessions.POST("/:id/stop", h.StopSession)
	sessions.POST("/:id/heartbeat", h.Heartbeat)
	sessions.POST("/:id/consent", h.UpdateConsent)
	sessions.POST("/:id/events", h.IngestEvent)
	sessions.POST("/:id/summarize", h.Summarize)
	sessions.GET("/:id/stream", h.StreamSession)
	sessions.GET("/:id/ws", h.StreamSessionWS)
}
