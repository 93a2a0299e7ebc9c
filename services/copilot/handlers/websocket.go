// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/cursor"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Token auth already ran; cross-origin browser clients are expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// wsStreamWriter adapts a websocket connection to the StreamWriter contract.
type wsStreamWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsStreamWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteJSON(event)
}

// StreamSessionWS handles GET /v1/sessions/:id/ws, the WebSocket variant of
// the streaming protocol. The message sequence is identical to the SSE
// endpoint; only the framing differs.
func (h *Handler) StreamSessionWS(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}
	cur := cursor.Parse(clientCursor(c))

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("handlers.websocket: upgrade failed",
			"session_id", session.ID, "error", err)
		return
	}
	defer conn.Close()

	h.metrics.StreamConnections.Inc()
	defer h.metrics.StreamConnections.Dec()

	// The read pump exists only to observe the close frame; a client
	// disconnect cancels the loop at its next boundary.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info("handlers.websocket: connection opened",
		"session_id", session.ID, "resumed", cur != nil)

	h.streamLoop(ctx, &wsStreamWriter{conn: conn}, session.ID, cur)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	h.logger.Info("handlers.websocket: connection closed", "session_id", session.ID)
}
