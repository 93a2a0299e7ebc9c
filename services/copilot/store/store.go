// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists copilot sessions and their append-only event logs.
//
// BadgerDB provides local embedded storage with low-latency access. The key
// layout makes badger's lexicographic key order the domain's total event
// order:
//
//	session/<id>                                → CopilotSession JSON
//	event/<sessionID>/<createdAt %020d>/<id>    → CopilotEvent JSON
//
// Events are append-only and never mutated after creation; within a session
// they are totally ordered by (created_at, id) with id as tie-break, which
// is exactly the order a prefix iteration yields.
//
// ListEventsSince deliberately implements only the coarse half of cursor
// resumption (created_at >= since). The precise composite refinement lives
// in the cursor package; see its docs for the two-phase contract.
package store

import (
	"context"
	"errors"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrSessionNotFound is returned when no session record exists.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPreconditionFailed is returned by UpdateSessionIf when the
	// precondition rejects the current record. The conditional update is
	// the only way session state is mutated, so concurrent transitions
	// cannot both succeed.
	ErrPreconditionFailed = errors.New("session precondition failed")

	// ErrSessionExists is returned when creating a session whose id is taken.
	ErrSessionExists = errors.New("session already exists")
)

// =============================================================================
// Interface
// =============================================================================

// Store is the persistence contract for sessions and events.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; every request and every
// stream connection shares one Store.
type Store interface {
	// CreateSession persists a new session record.
	CreateSession(ctx context.Context, session *datatypes.CopilotSession) error

	// GetSession loads a session by id. Returns ErrSessionNotFound when
	// the record is missing.
	GetSession(ctx context.Context, id string) (*datatypes.CopilotSession, error)

	// UpdateSessionIf atomically applies mutate to the session record,
	// but only when precondition accepts the currently stored value.
	//
	// The read, the check, and the write happen inside one storage
	// transaction — this is the compare-and-swap primitive behind the
	// guarded status transitions. A rejected precondition returns the
	// precondition's error wrapped in ErrPreconditionFailed, and the
	// record is left untouched.
	UpdateSessionIf(ctx context.Context, id string,
		precondition func(*datatypes.CopilotSession) error,
		mutate func(*datatypes.CopilotSession)) (*datatypes.CopilotSession, error)

	// DeleteSession removes the session record and all its events.
	// Callers enforce the not-active rule before deleting.
	DeleteSession(ctx context.Context, id string) error

	// AppendEvent persists one event. A missing ID or CreatedAt is
	// assigned here so the stored key and the stored value agree.
	AppendEvent(ctx context.Context, event *datatypes.CopilotEvent) (*datatypes.CopilotEvent, error)

	// ListEvents returns every event of the session in (created_at, id)
	// order.
	ListEvents(ctx context.Context, sessionID string) ([]datatypes.CopilotEvent, error)

	// ListEventsSince returns events with created_at >= sinceMillis in
	// (created_at, id) order. This is the coarse inequality only: events
	// sharing the boundary timestamp are all included regardless of id.
	ListEventsSince(ctx context.Context, sessionID string, sinceMillis int64) ([]datatypes.CopilotEvent, error)

	// RecentTranscripts returns up to limit transcript events,
	// newest-first.
	RecentTranscripts(ctx context.Context, sessionID string, limit int) ([]datatypes.CopilotEvent, error)

	// Close releases the underlying database.
	Close() error
}
