// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/cursor"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
)

// CursorHeader is the reconnect header carrying the last-seen cursor token.
const CursorHeader = "Last-Event-Cursor"

// StreamSession handles GET /v1/sessions/:id/stream, the SSE variant of the
// streaming protocol.
func (h *Handler) StreamSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c, c.Param("id"))
	if !ok {
		return
	}

	cur := cursor.Parse(clientCursor(c))
	writer, err := newSSEWriter(c.Writer)
	if err != nil {
		respondInternal(c, h.logger, "stream_session", err)
		return
	}

	h.metrics.StreamConnections.Inc()
	defer h.metrics.StreamConnections.Dec()
	h.logger.Info("handlers.stream: connection opened",
		"session_id", session.ID, "resumed", cur != nil)

	h.streamLoop(c.Request.Context(), writer, session.ID, cur)

	h.logger.Info("handlers.stream: connection closed", "session_id", session.ID)
}

// clientCursor reads the resume token from the reconnect header, falling
// back to the cursor query parameter.
func clientCursor(c *gin.Context) string {
	if token := c.GetHeader(CursorHeader); token != "" {
		return token
	}
	return c.Query("cursor")
}

// streamLoop is the cooperative per-connection loop shared by the SSE and
// WebSocket transports.
//
// Each iteration: check for client disconnect, run the lazy expiry check,
// emit a full snapshot on the first iteration without a cursor or the
// refined deltas otherwise, then emit the current session state. A terminal
// session ends the stream. In-flight store calls are never interrupted;
// cancellation is observed only at the loop boundaries.
func (h *Handler) streamLoop(ctx context.Context, w StreamWriter, sessionID string, cur *cursor.Cursor) {
	if err := w.WriteEvent(datatypes.StreamEvent{Type: datatypes.StreamConnected}); err != nil {
		return
	}

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		session, err := h.lifecycle.CheckExpiry(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				// A vanished record is indistinguishable from an expired
				// session as far as the client is concerned.
				_ = w.WriteEvent(datatypes.StreamEvent{
					Type:     datatypes.StreamSession,
					Session:  &datatypes.CopilotSession{ID: sessionID, Status: datatypes.SessionExpired},
					Terminal: true,
				})
			}
			return
		}

		if first && cur == nil {
			cur, err = h.emitSnapshot(ctx, w, session)
		} else {
			cur, err = h.emitDeltas(ctx, w, sessionID, cur)
		}
		if err != nil {
			return
		}
		first = false

		terminal := session.Status != datatypes.SessionActive
		if err := w.WriteEvent(datatypes.StreamEvent{
			Type:     datatypes.StreamSession,
			Session:  session,
			Terminal: terminal,
		}); err != nil {
			return
		}
		if terminal {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.pollInterval):
		}
	}
}

// emitSnapshot sends the full session and event history as one message and
// returns the cursor positioned after the newest event.
func (h *Handler) emitSnapshot(ctx context.Context, w StreamWriter, session *datatypes.CopilotSession) (*cursor.Cursor, error) {
	events, err := h.store.ListEvents(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	snap := datatypes.StreamEvent{
		Type:    datatypes.StreamSnapshot,
		Session: session,
		Events:  events,
	}
	var cur *cursor.Cursor
	if len(events) > 0 {
		last := events[len(events)-1]
		cur = &cursor.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		snap.Cursor = cursor.Encode(&last)
	}
	if err := w.WriteEvent(snap); err != nil {
		return nil, err
	}
	return cur, nil
}

// emitDeltas sends each new event individually, tagged with the cursor
// positioned after it, and returns the advanced cursor.
func (h *Handler) emitDeltas(ctx context.Context, w StreamWriter, sessionID string, cur *cursor.Cursor) (*cursor.Cursor, error) {
	events, err := h.store.ListEventsSince(ctx, sessionID, cur.SinceMillis())
	if err != nil {
		return cur, err
	}

	for _, ev := range cursor.Refine(events, cur) {
		ev := ev
		if err := w.WriteEvent(datatypes.StreamEvent{
			Type:   datatypes.StreamCopilotEvent,
			Event:  &ev,
			Cursor: cursor.Encode(&ev),
		}); err != nil {
			return cur, err
		}
		cur = &cursor.Cursor{CreatedAt: ev.CreatedAt, ID: ev.ID}
	}
	return cur, nil
}
