// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package consent derives a consent state from session metadata and gates
// transcript ingestion on it.
//
// Consent is a computed projection, not a stored row: every check derives
// the state from the session's metadata timestamps at read time. The
// recorded revoke timestamp is authoritative for point-in-time validity —
// a "granted" snapshot taken before a revoke must not legitimize actions
// logically queued after the revoke.
package consent

import (
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// =============================================================================
// States and Reasons
// =============================================================================

// State is the derived consent state of a session.
type State string

const (
	StatePending State = "pending"
	StateGranted State = "granted"
	StateRevoked State = "revoked"
	StateExpired State = "expired"
)

// Rejection reasons returned by CheckIngest, in priority order: the session
// status is checked before the derived consent state.
const (
	ReasonSessionNotActive = "session_not_active"
	ReasonConsentPending   = "consent_pending"
	ReasonConsentRevoked   = "consent_revoked"
	ReasonConsentExpired   = "consent_expired"
)

// Decision is the outcome of an ingest consent check.
type Decision struct {
	Allowed bool
	Reason  string
}

// =============================================================================
// Derivation
// =============================================================================

// Derive computes the consent state for a session at the given time
// (Unix milliseconds).
//
// A recorded revoke always wins. A granted consent with a passed
// ConsentExpiresAt derives expired. Anything else is pending.
func Derive(session *datatypes.CopilotSession, nowMillis int64) State {
	meta := session.Metadata

	if meta.ConsentRevokedAt > 0 || meta.ConsentStatus == string(StateRevoked) {
		return StateRevoked
	}
	granted := meta.ConsentStatus == string(StateGranted) || meta.ConsentGrantedAt > 0
	if !granted {
		return StatePending
	}
	if meta.ConsentExpiresAt > 0 && nowMillis >= meta.ConsentExpiresAt {
		return StateExpired
	}
	return StateGranted
}

// CheckIngest decides whether ingestion may proceed for the session.
//
// Allowed only when the session is active AND the derived consent is
// granted. Rejections carry the most specific documented reason:
// session_not_active first, then the consent-derived reason.
func CheckIngest(session *datatypes.CopilotSession, nowMillis int64) Decision {
	if session.Status != datatypes.SessionActive {
		return Decision{Reason: ReasonSessionNotActive}
	}

	switch Derive(session, nowMillis) {
	case StateGranted:
		return Decision{Allowed: true}
	case StateRevoked:
		return Decision{Reason: ReasonConsentRevoked}
	case StateExpired:
		return Decision{Reason: ReasonConsentExpired}
	default:
		return Decision{Reason: ReasonConsentPending}
	}
}

// IsValidAt reports whether consent covered an action at the given
// timestamp (Unix milliseconds).
//
// Returns false when the action timestamp is at or after a recorded revoke
// timestamp, even if the current derived state still looks granted — this
// guards against stale "granted" snapshots for actions logically queued
// before the revoke was observed. Actions strictly before the revoke
// remain valid.
func IsValidAt(session *datatypes.CopilotSession, actionMillis int64) bool {
	meta := session.Metadata

	granted := meta.ConsentStatus == string(StateGranted) || meta.ConsentGrantedAt > 0
	if !granted && meta.ConsentRevokedAt == 0 {
		return false
	}
	if meta.ConsentRevokedAt > 0 && actionMillis >= meta.ConsentRevokedAt {
		return false
	}
	if meta.ConsentGrantedAt > 0 && actionMillis < meta.ConsentGrantedAt {
		return false
	}
	return true
}
