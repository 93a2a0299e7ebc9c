// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the copilot service.
//
// This file contains request types for the session and ingest endpoints,
// validated with go-playground/validator.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxTranscriptChars is the maximum length of one transcript turn.
	MaxTranscriptChars = 4000

	// MaxTranscriptBytes bounds the byte size of one turn independently of
	// the rune count, against memory-exhaustion payloads.
	MaxTranscriptBytes = 16 * 1024
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// requestValidate is the validator instance for request datatypes.
// Initialized in init() with custom validators.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) against
// MaxTranscriptBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxTranscriptBytes
}

// =============================================================================
// Request Types
// =============================================================================

// IngestEventRequest is the body of POST /v1/sessions/:id/events.
//
// # Fields
//
//   - EventType: "transcript" or "system". Suggestions are never ingested
//     directly; they are produced server-side.
//   - Speaker: who produced the turn.
//   - Text: 1-4000 characters, bounded to 16KB of bytes.
//   - AutoSuggest: optional; nil means enabled. Only an explicit false
//     disables auto-suggestion for this turn.
type IngestEventRequest struct {
	EventType   string `json:"event_type" validate:"required,oneof=transcript system"`
	Speaker     string `json:"speaker" validate:"required,oneof=interviewer candidate system"`
	Text        string `json:"text" validate:"required,min=1,max=4000,maxbytes"`
	AutoSuggest *bool  `json:"auto_suggest"`
}

// Validate checks the request against its constraints.
func (r *IngestEventRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid ingest request: %w", err)
	}
	return nil
}

// AutoSuggestEnabled reports whether auto-suggestion applies to this turn.
// Absence of the field means enabled.
func (r *IngestEventRequest) AutoSuggestEnabled() bool {
	return r.AutoSuggest == nil || *r.AutoSuggest
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	Mode           string `json:"mode" validate:"omitempty,oneof=copilot practice mock"`
	ConsentGranted bool   `json:"consent_granted"`
}

// Validate checks the request against its constraints.
func (r *CreateSessionRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid create session request: %w", err)
	}
	return nil
}

// ConsentUpdateRequest is the body of POST /v1/sessions/:id/consent.
type ConsentUpdateRequest struct {
	Action string `json:"action" validate:"required,oneof=grant revoke"`
}

// Validate checks the request against its constraints.
func (r *ConsentUpdateRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid consent request: %w", err)
	}
	return nil
}
