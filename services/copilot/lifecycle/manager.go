// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lifecycle owns session status transitions.
//
// Sessions move active→stopped on an explicit stop and active→expired when
// the heartbeat-inactivity window is exceeded; both states are terminal.
// Expiry is lazy: there is no background sweeper, the check runs on every
// request that touches a session. Every transition goes through the store's
// conditional update with a status==active precondition, so a concurrent
// stop and a concurrent expiry detection can never both succeed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
	"github.com/samhanoun/finalround-clone-sub001/services/copilot/store"
)

// ErrNotActive is returned when a transition requires an active session.
var ErrNotActive = errors.New("session is not active")

// Manager performs guarded session transitions against the store.
//
// # Thread Safety
//
// Safe for concurrent use; all mutation funnels through the store's
// conditional update.
type Manager struct {
	store            store.Store
	heartbeatTimeout time.Duration
	logger           *slog.Logger

	// nowMillis is injectable for tests.
	nowMillis func() int64
}

// NewManager builds a Manager. A nil logger discards lifecycle logs.
func NewManager(s store.Store, heartbeatTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:            s,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger,
		nowMillis:        func() int64 { return time.Now().UnixMilli() },
	}
}

// IsHeartbeatExpired reports whether the session's inactivity window has
// been exceeded. Only meaningful for active sessions.
func (m *Manager) IsHeartbeatExpired(session *datatypes.CopilotSession) bool {
	if session.Status != datatypes.SessionActive {
		return false
	}
	idle := m.nowMillis() - session.LastActivityAt()
	return idle > m.heartbeatTimeout.Milliseconds()
}

// CheckExpiry loads the session and lazily applies the heartbeat-expiry
// transition when due. The returned session reflects post-transition state.
//
// When the conditional update loses a race with a concurrent transition the
// store's current record is returned instead; either way the caller sees a
// terminal session and never a stale "active".
func (m *Manager) CheckExpiry(ctx context.Context, sessionID string) (*datatypes.CopilotSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !m.IsHeartbeatExpired(session) {
		return session, nil
	}

	expired, err := m.expire(ctx, sessionID)
	if err == nil {
		m.logger.Info("lifecycle.manager: session expired by heartbeat timeout",
			"session_id", sessionID,
			"last_activity_at", session.LastActivityAt())
		return expired, nil
	}
	if errors.Is(err, store.ErrPreconditionFailed) {
		// Lost the race to a concurrent stop or expiry; re-read.
		return m.store.GetSession(ctx, sessionID)
	}
	return nil, err
}

// expire performs the guarded active→expired transition.
func (m *Manager) expire(ctx context.Context, sessionID string) (*datatypes.CopilotSession, error) {
	now := m.nowMillis()
	return m.store.UpdateSessionIf(ctx, sessionID,
		requireActive,
		func(s *datatypes.CopilotSession) {
			s.Status = datatypes.SessionExpired
			s.StoppedAt = now
			s.Metadata.ExpiredReason = datatypes.ExpiredReasonHeartbeat
			finalizeUsage(s, now)
		},
	)
}

// Stop performs the guarded active→stopped transition.
func (m *Manager) Stop(ctx context.Context, sessionID string) (*datatypes.CopilotSession, error) {
	now := m.nowMillis()
	session, err := m.store.UpdateSessionIf(ctx, sessionID,
		requireActive,
		func(s *datatypes.CopilotSession) {
			s.Status = datatypes.SessionStopped
			s.StoppedAt = now
			finalizeUsage(s, now)
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, fmt.Errorf("%w: %s", ErrNotActive, sessionID)
		}
		return nil, err
	}
	m.logger.Info("lifecycle.manager: session stopped", "session_id", sessionID)
	return session, nil
}

// Heartbeat records liveness on an active session.
func (m *Manager) Heartbeat(ctx context.Context, sessionID string) (*datatypes.CopilotSession, error) {
	now := m.nowMillis()
	session, err := m.store.UpdateSessionIf(ctx, sessionID,
		requireActive,
		func(s *datatypes.CopilotSession) {
			s.Metadata.LastHeartbeatAt = now
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, fmt.Errorf("%w: %s", ErrNotActive, sessionID)
		}
		return nil, err
	}
	return session, nil
}

func requireActive(s *datatypes.CopilotSession) error {
	if s.Status != datatypes.SessionActive {
		return fmt.Errorf("status is %s", s.Status)
	}
	return nil
}

// finalizeUsage stamps the derived duration fields at terminal transition.
func finalizeUsage(s *datatypes.CopilotSession, nowMillis int64) {
	elapsed := nowMillis - s.StartedAt
	if elapsed < 0 {
		elapsed = 0
	}
	s.DurationSeconds = elapsed / 1000
	s.ConsumedMinutes = int((elapsed + 59_999) / 60_000)
}
