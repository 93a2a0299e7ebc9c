// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
)

func newTestManager(t *testing.T, timeout time.Duration) (*Manager, store.Store) {
	t.Helper()
	s, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewManager(s, timeout, nil), s
}

func seedSession(t *testing.T, s store.Store, session *datatypes.CopilotSession) {
	t.Helper()
	require.NoError(t, s.CreateSession(context.Background(), session))
}

// TestCheckExpiry_FreshSessionStaysActive tests that a recently active
// session is untouched.
func TestCheckExpiry_FreshSessionStaysActive(t *testing.T) {
	m, s := newTestManager(t, 3*time.Minute)
	m.nowMillis = func() int64 { return 100_000 }
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionActive, StartedAt: 90_000,
	})

	session, err := m.CheckExpiry(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionActive, session.Status)
}

// TestCheckExpiry_StaleHeartbeatExpires tests the lazy active→expired
// transition with reason and stop timestamp stamped.
func TestCheckExpiry_StaleHeartbeatExpires(t *testing.T) {
	m, s := newTestManager(t, 3*time.Minute)
	now := int64(10 * 60 * 1000)
	m.nowMillis = func() int64 { return now }
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionActive, StartedAt: 0,
		Metadata: datatypes.SessionMetadata{LastHeartbeatAt: 60_000},
	})

	session, err := m.CheckExpiry(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionExpired, session.Status)
	assert.Equal(t, datatypes.ExpiredReasonHeartbeat, session.Metadata.ExpiredReason)
	assert.Equal(t, now, session.StoppedAt)
	assert.EqualValues(t, 600, session.DurationSeconds)
	assert.Equal(t, 10, session.ConsumedMinutes)
}

// TestCheckExpiry_FallsBackToStartedAt tests the heartbeat fallback when no
// heartbeat was ever recorded.
func TestCheckExpiry_FallsBackToStartedAt(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	m.nowMillis = func() int64 { return 120_000 }
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionActive, StartedAt: 0,
	})

	session, err := m.CheckExpiry(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionExpired, session.Status)
}

// TestCheckExpiry_TerminalSessionUnchanged tests that stopped sessions are
// never re-expired.
func TestCheckExpiry_TerminalSessionUnchanged(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	m.nowMillis = func() int64 { return 1_000_000 }
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionStopped, StartedAt: 0, StoppedAt: 5_000,
	})

	session, err := m.CheckExpiry(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionStopped, session.Status)
	assert.EqualValues(t, 5_000, session.StoppedAt)
}

// TestCheckExpiry_MissingSession tests the not-found sentinel propagates.
func TestCheckExpiry_MissingSession(t *testing.T) {
	m, _ := newTestManager(t, time.Minute)

	_, err := m.CheckExpiry(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

// TestStop_ActiveSession tests the explicit stop path.
func TestStop_ActiveSession(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	m.nowMillis = func() int64 { return 90_000 }
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionActive, StartedAt: 0,
	})

	session, err := m.Stop(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionStopped, session.Status)
	assert.EqualValues(t, 90, session.DurationSeconds)
	assert.Equal(t, 2, session.ConsumedMinutes)
	assert.Empty(t, session.Metadata.ExpiredReason)
}

// TestStop_TerminalSessionRejected tests that stopping a non-active session
// fails with ErrNotActive and does not clobber the record.
func TestStop_TerminalSessionRejected(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionExpired, StartedAt: 0, StoppedAt: 7_000,
		Metadata: datatypes.SessionMetadata{ExpiredReason: datatypes.ExpiredReasonHeartbeat},
	})

	_, err := m.Stop(context.Background(), "sess-1")
	require.ErrorIs(t, err, ErrNotActive)

	got, err := s.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionExpired, got.Status)
	assert.EqualValues(t, 7_000, got.StoppedAt)
}

// TestHeartbeat_RecordsLiveness tests that a heartbeat bumps the timestamp
// on an active session and is rejected on a terminal one.
func TestHeartbeat_RecordsLiveness(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	m.nowMillis = func() int64 { return 42_000 }
	seedSession(t, s, &datatypes.CopilotSession{
		ID: "sess-1", Status: datatypes.SessionActive, StartedAt: 0,
	})

	session, err := m.Heartbeat(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.EqualValues(t, 42_000, session.Metadata.LastHeartbeatAt)

	_, err = m.Stop(context.Background(), "sess-1")
	require.NoError(t, err)

	_, err = m.Heartbeat(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrNotActive)
}
