// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// StreamEventType classifies server-push messages on a stream connection.
type StreamEventType string

const (
	// StreamConnected is the first message on every connection.
	StreamConnected StreamEventType = "connected"

	// StreamSnapshot carries the full session plus event history; sent once
	// when a client connects without a resumable cursor.
	StreamSnapshot StreamEventType = "snapshot"

	// StreamCopilotEvent carries one incremental event delta with the
	// cursor token positioned after it.
	StreamCopilotEvent StreamEventType = "copilot_event"

	// StreamSession carries the current session state. Terminal session
	// messages end the stream.
	StreamSession StreamEventType = "session"
)

// StreamEvent is one typed server-push message.
//
// Cursor is attached to copilot_event messages so the client can resume
// via a last-seen-position header after a reconnect. Terminal marks the
// final session message of a stream.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Session  *CopilotSession `json:"session,omitempty"`
	Event    *CopilotEvent   `json:"event,omitempty"`
	Events   []CopilotEvent  `json:"events,omitempty"`
	Cursor   string          `json:"cursor,omitempty"`
	Terminal bool            `json:"terminal,omitempty"`
}
