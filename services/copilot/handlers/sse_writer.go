// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// StreamWriter is the transport-agnostic sink of the streaming loop.
// SSE and WebSocket connections both implement it.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type StreamWriter interface {
	// WriteEvent serializes and sends one stream event, flushing
	// immediately.
	WriteEvent(event datatypes.StreamEvent) error
}

// sseWriter writes stream events in SSE wire format
// (event: type\ndata: json\n\n) and flushes after every event.
type sseWriter struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares the response for event streaming. Returns an error
// when the ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (s *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
