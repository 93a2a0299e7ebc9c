// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newActiveSession(t *testing.T, s *BadgerStore, id string) *datatypes.CopilotSession {
	t.Helper()
	session := &datatypes.CopilotSession{
		ID:        id,
		OwnerID:   "user-1",
		Status:    datatypes.SessionActive,
		StartedAt: 1_000,
	}
	require.NoError(t, s.CreateSession(context.Background(), session))
	return session
}

// TestCreateSession_DuplicateID tests that re-creating a session id fails
// with ErrSessionExists.
func TestCreateSession_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")

	err := s.CreateSession(context.Background(), &datatypes.CopilotSession{ID: "sess-1"})
	assert.ErrorIs(t, err, ErrSessionExists)
}

// TestGetSession_Missing tests the not-found sentinel.
func TestGetSession_Missing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// TestUpdateSessionIf_PreconditionRejected tests that a failing precondition
// leaves the record untouched and wraps the cause in ErrPreconditionFailed.
func TestUpdateSessionIf_PreconditionRejected(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")

	cause := errors.New("already terminal")
	_, err := s.UpdateSessionIf(context.Background(), "sess-1",
		func(*datatypes.CopilotSession) error { return cause },
		func(sess *datatypes.CopilotSession) { sess.Status = datatypes.SessionStopped },
	)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.ErrorIs(t, err, cause)

	got, err := s.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionActive, got.Status)
}

// TestUpdateSessionIf_AppliesMutation tests the happy path of the
// conditional update.
func TestUpdateSessionIf_AppliesMutation(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")

	updated, err := s.UpdateSessionIf(context.Background(), "sess-1",
		func(sess *datatypes.CopilotSession) error {
			if sess.Status != datatypes.SessionActive {
				return errors.New("not active")
			}
			return nil
		},
		func(sess *datatypes.CopilotSession) {
			sess.Status = datatypes.SessionStopped
			sess.StoppedAt = 2_000
		},
	)
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionStopped, updated.Status)

	got, err := s.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionStopped, got.Status)
	assert.EqualValues(t, 2_000, got.StoppedAt)
}

// TestAppendEvent_AssignsIDAndTimestamp tests that missing fields are filled
// in at append time.
func TestAppendEvent_AssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	s.nowMillis = func() int64 { return 42 }
	newActiveSession(t, s, "sess-1")

	ev, err := s.AppendEvent(context.Background(), &datatypes.CopilotEvent{
		SessionID: "sess-1",
		Type:      datatypes.EventTranscript,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.EqualValues(t, 42, ev.CreatedAt)
}

// TestListEvents_OrderWithEqualTimestamps tests that events sharing a
// timestamp come back ordered by id.
func TestListEvents_OrderWithEqualTimestamps(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")
	ctx := context.Background()

	for _, e := range []datatypes.CopilotEvent{
		{ID: "b", SessionID: "sess-1", Type: datatypes.EventTranscript, CreatedAt: 100},
		{ID: "a", SessionID: "sess-1", Type: datatypes.EventTranscript, CreatedAt: 100},
		{ID: "c", SessionID: "sess-1", Type: datatypes.EventTranscript, CreatedAt: 50},
	} {
		e := e
		_, err := s.AppendEvent(ctx, &e)
		require.NoError(t, err)
	}

	events, err := s.ListEvents(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].ID)
	assert.Equal(t, "a", events[1].ID)
	assert.Equal(t, "b", events[2].ID)
}

// TestListEventsSince_CoarseBoundary tests the created_at >= since contract,
// including every event at the boundary timestamp.
func TestListEventsSince_CoarseBoundary(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")
	ctx := context.Background()

	for i, at := range []int64{10, 20, 20, 30} {
		_, err := s.AppendEvent(ctx, &datatypes.CopilotEvent{
			ID:        fmt.Sprintf("ev-%d", i),
			SessionID: "sess-1",
			Type:      datatypes.EventTranscript,
			CreatedAt: at,
		})
		require.NoError(t, err)
	}

	events, err := s.ListEventsSince(ctx, "sess-1", 20)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.CreatedAt, int64(20))
	}
}

// TestListEvents_IsolatedBySession tests that sessions do not see each
// other's events.
func TestListEvents_IsolatedBySession(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")
	newActiveSession(t, s, "sess-2")
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, &datatypes.CopilotEvent{SessionID: "sess-1", Type: datatypes.EventSystem, CreatedAt: 1})
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, &datatypes.CopilotEvent{SessionID: "sess-2", Type: datatypes.EventSystem, CreatedAt: 1})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sess-1", events[0].SessionID)
}

// TestRecentTranscripts_NewestFirstAndFiltered tests the newest-first order,
// the transcript-only filter, and the limit.
func TestRecentTranscripts_NewestFirstAndFiltered(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.AppendEvent(ctx, &datatypes.CopilotEvent{
			ID:        fmt.Sprintf("t-%d", i),
			SessionID: "sess-1",
			Type:      datatypes.EventTranscript,
			CreatedAt: int64(i * 10),
		})
		require.NoError(t, err)
	}
	_, err := s.AppendEvent(ctx, &datatypes.CopilotEvent{
		ID: "sug", SessionID: "sess-1", Type: datatypes.EventSuggestion, CreatedAt: 60,
	})
	require.NoError(t, err)

	events, err := s.RecentTranscripts(ctx, "sess-1", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "t-5", events[0].ID)
	assert.Equal(t, "t-4", events[1].ID)
	assert.Equal(t, "t-3", events[2].ID)
}

// TestDeleteSession_RemovesEvents tests that deletion drops both the session
// record and its event log.
func TestDeleteSession_RemovesEvents(t *testing.T) {
	s := newTestStore(t)
	newActiveSession(t, s, "sess-1")
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, &datatypes.CopilotEvent{SessionID: "sess-1", Type: datatypes.EventSystem, CreatedAt: 1})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))

	_, err = s.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	events, err := s.ListEvents(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}
