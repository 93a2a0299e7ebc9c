// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cursor encodes resumable stream positions.
//
// A cursor names the composite position (created_at, id) of the last event a
// client received. Resumption is two-phase: the store answers the coarse
// created_at >= since inequality, then Refine drops the events at the
// boundary timestamp that the client already has. The split keeps the
// storage scan a plain key seek while still guaranteeing exactly-once
// delivery across reconnects, even when events share a timestamp.
//
// Tokens are opaque to clients. A malformed or empty token is treated as
// "no cursor" rather than an error, so a client with a stale or corrupted
// token degrades to a full replay instead of being locked out.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// Cursor is a decoded stream position.
type Cursor struct {
	// CreatedAt is the Unix-millisecond timestamp of the last delivered
	// event.
	CreatedAt int64

	// ID is the id of the last delivered event, the tie-break within a
	// timestamp.
	ID string
}

// Encode returns the opaque token for an event's position.
func Encode(event *datatypes.CopilotEvent) string {
	raw := fmt.Sprintf("%d:%s", event.CreatedAt, event.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Parse decodes a client-supplied token. Empty or malformed tokens yield a
// nil cursor, meaning "replay from the beginning".
func Parse(token string) *Cursor {
	if token == "" {
		return nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}
	at, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil
	}
	createdAt, err := strconv.ParseInt(at, 10, 64)
	if err != nil || createdAt < 0 {
		return nil
	}
	return &Cursor{CreatedAt: createdAt, ID: id}
}

// SinceMillis is the coarse lower bound to hand the store. A nil cursor
// starts from zero.
func (c *Cursor) SinceMillis() int64 {
	if c == nil {
		return 0
	}
	return c.CreatedAt
}

// Refine drops events at or before the cursor's composite position. The
// input must already be in (created_at, id) order; order is preserved.
func Refine(events []datatypes.CopilotEvent, c *Cursor) []datatypes.CopilotEvent {
	if c == nil {
		return events
	}
	// Events are ordered, so the survivors are a suffix.
	for i := range events {
		if events[i].After(c.CreatedAt, c.ID) {
			return events[i:]
		}
	}
	return nil
}
