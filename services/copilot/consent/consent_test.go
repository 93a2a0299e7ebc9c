// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package consent

import (
	"testing"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

const now = int64(1_700_000_000_000)

func activeSession(meta datatypes.SessionMetadata) *datatypes.CopilotSession {
	return &datatypes.CopilotSession{
		ID:       "s-1",
		OwnerID:  "u-1",
		Status:   datatypes.SessionActive,
		Metadata: meta,
	}
}

// TestCheckIngest_ActiveGranted tests the single allowed combination.
func TestCheckIngest_ActiveGranted(t *testing.T) {
	s := activeSession(datatypes.SessionMetadata{
		ConsentStatus:    string(StateGranted),
		ConsentGrantedAt: now - 1000,
	})

	d := CheckIngest(s, now)
	if !d.Allowed {
		t.Fatalf("(active, granted) must be allowed, got reason %q", d.Reason)
	}
}

// TestCheckIngest_RejectionReasons tests that every other (status, consent)
// combination is rejected with its documented specific reason.
func TestCheckIngest_RejectionReasons(t *testing.T) {
	cases := []struct {
		name       string
		status     datatypes.SessionStatus
		meta       datatypes.SessionMetadata
		wantReason string
	}{
		{
			name:       "stopped session beats consent check",
			status:     datatypes.SessionStopped,
			meta:       datatypes.SessionMetadata{ConsentStatus: string(StateGranted), ConsentGrantedAt: now - 1000},
			wantReason: ReasonSessionNotActive,
		},
		{
			name:       "expired session beats consent check",
			status:     datatypes.SessionExpired,
			meta:       datatypes.SessionMetadata{ConsentRevokedAt: now - 500},
			wantReason: ReasonSessionNotActive,
		},
		{
			name:       "active but pending",
			status:     datatypes.SessionActive,
			meta:       datatypes.SessionMetadata{},
			wantReason: ReasonConsentPending,
		},
		{
			name:       "active but revoked",
			status:     datatypes.SessionActive,
			meta:       datatypes.SessionMetadata{ConsentGrantedAt: now - 2000, ConsentRevokedAt: now - 1000},
			wantReason: ReasonConsentRevoked,
		},
		{
			name:       "active but consent expired",
			status:     datatypes.SessionActive,
			meta:       datatypes.SessionMetadata{ConsentStatus: string(StateGranted), ConsentGrantedAt: now - 2000, ConsentExpiresAt: now - 1},
			wantReason: ReasonConsentExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := activeSession(tc.meta)
			s.Status = tc.status
			d := CheckIngest(s, now)
			if d.Allowed {
				t.Fatal("combination must be rejected")
			}
			if d.Reason != tc.wantReason {
				t.Errorf("reason = %q, want %q", d.Reason, tc.wantReason)
			}
		})
	}
}

// TestDerive_RevokeWinsOverGranted tests that a recorded revoke timestamp
// dominates a stale granted status string.
func TestDerive_RevokeWinsOverGranted(t *testing.T) {
	s := activeSession(datatypes.SessionMetadata{
		ConsentStatus:    string(StateGranted),
		ConsentGrantedAt: now - 5000,
		ConsentRevokedAt: now - 1000,
	})
	if got := Derive(s, now); got != StateRevoked {
		t.Errorf("Derive = %v, want revoked", got)
	}
}

// TestIsValidAt_RevokeOrdering tests the point-in-time validity contract:
// an action at or after the revoke timestamp is invalid even when the
// current snapshot still says granted; strictly before remains valid.
func TestIsValidAt_RevokeOrdering(t *testing.T) {
	revokedAt := now - 1000
	s := activeSession(datatypes.SessionMetadata{
		ConsentStatus:    string(StateGranted), // stale snapshot
		ConsentGrantedAt: now - 10_000,
		ConsentRevokedAt: revokedAt,
	})

	if IsValidAt(s, revokedAt+1) {
		t.Error("action after revoke must be invalid")
	}
	if IsValidAt(s, revokedAt) {
		t.Error("action at the revoke instant must be invalid")
	}
	if !IsValidAt(s, revokedAt-1) {
		t.Error("action strictly before revoke must stay valid")
	}
}

// TestIsValidAt_NeverGranted tests that sessions without any consent grant
// never validate past actions.
func TestIsValidAt_NeverGranted(t *testing.T) {
	s := activeSession(datatypes.SessionMetadata{})
	if IsValidAt(s, now) {
		t.Error("never-granted consent must be invalid at any time")
	}
}

// TestIsValidAt_BeforeGrant tests that actions predating the grant are not
// retroactively covered.
func TestIsValidAt_BeforeGrant(t *testing.T) {
	s := activeSession(datatypes.SessionMetadata{
		ConsentStatus:    string(StateGranted),
		ConsentGrantedAt: now - 1000,
	})
	if IsValidAt(s, now-2000) {
		t.Error("action before grant must be invalid")
	}
	if !IsValidAt(s, now-500) {
		t.Error("action after grant must be valid")
	}
}
