// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/samhanoun/finalround-clone-sub001/services/copilot/datatypes"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds configuration for the BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// Badger Store
// =============================================================================

// BadgerStore implements Store on an embedded BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use; badger transactions provide the isolation the
// conditional session update relies on.
type BadgerStore struct {
	db *badger.DB

	// nowMillis is injectable for tests; defaults to wall clock.
	nowMillis func() int64
}

// Open creates and opens the store with the given configuration.
//
// The directory is created if it doesn't exist. Caller must call Close()
// when done.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &BadgerStore{
		db:        db,
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Key Layout
// =============================================================================

func sessionKey(id string) []byte {
	return []byte("session/" + id)
}

func eventPrefix(sessionID string) []byte {
	return []byte("event/" + sessionID + "/")
}

// eventKey encodes (created_at, id) so that badger's key order is the
// session's total event order. CreatedAt is zero-padded to 20 digits.
func eventKey(sessionID string, createdAt int64, id string) []byte {
	return fmt.Appendf(nil, "event/%s/%020d/%s", sessionID, createdAt, id)
}

// eventSeekKey is the smallest possible key at the given timestamp,
// used as the coarse created_at >= since lower bound.
func eventSeekKey(sessionID string, sinceMillis int64) []byte {
	return fmt.Appendf(nil, "event/%s/%020d/", sessionID, sinceMillis)
}

// =============================================================================
// Sessions
// =============================================================================

// CreateSession persists a new session record.
func (s *BadgerStore) CreateSession(_ context.Context, session *datatypes.CopilotSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := sessionKey(session.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check session existence: %w", err)
		}
		value, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return txn.Set(key, value)
	})
}

// GetSession loads a session by id.
func (s *BadgerStore) GetSession(_ context.Context, id string) (*datatypes.CopilotSession, error) {
	var session datatypes.CopilotSession
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
			}
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSessionIf atomically applies mutate when precondition accepts the
// stored record. Read, check and write share one badger transaction.
func (s *BadgerStore) UpdateSessionIf(_ context.Context, id string,
	precondition func(*datatypes.CopilotSession) error,
	mutate func(*datatypes.CopilotSession)) (*datatypes.CopilotSession, error) {

	var updated datatypes.CopilotSession
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
			}
			return fmt.Errorf("get session: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &updated)
		}); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		if precondition != nil {
			if err := precondition(&updated); err != nil {
				return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
			}
		}
		mutate(&updated)

		value, err := json.Marshal(&updated)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return txn.Set(sessionKey(id), value)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSession removes the session record and all its events.
func (s *BadgerStore) DeleteSession(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(sessionKey(id)); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix(id)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete event: %w", err)
			}
		}
		return nil
	})
}

// =============================================================================
// Events
// =============================================================================

// AppendEvent persists one event, assigning ID and CreatedAt when unset.
func (s *BadgerStore) AppendEvent(_ context.Context, event *datatypes.CopilotEvent) (*datatypes.CopilotEvent, error) {
	if event.SessionID == "" {
		return nil, errors.New("event is missing session_id")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = s.nowMillis()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(event.SessionID, event.CreatedAt, event.ID), value)
	})
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return event, nil
}

// ListEvents returns every event of the session in (created_at, id) order.
func (s *BadgerStore) ListEvents(ctx context.Context, sessionID string) ([]datatypes.CopilotEvent, error) {
	return s.scanEvents(ctx, sessionID, eventPrefix(sessionID))
}

// ListEventsSince returns events with created_at >= sinceMillis in order.
// Coarse inequality only; composite refinement is the cursor package's job.
func (s *BadgerStore) ListEventsSince(_ context.Context, sessionID string, sinceMillis int64) ([]datatypes.CopilotEvent, error) {
	var events []datatypes.CopilotEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix(sessionID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventSeekKey(sessionID, sinceMillis)); it.Valid(); it.Next() {
			var event datatypes.CopilotEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// RecentTranscripts returns up to limit transcript events, newest-first.
func (s *BadgerStore) RecentTranscripts(_ context.Context, sessionID string, limit int) ([]datatypes.CopilotEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	var events []datatypes.CopilotEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix(sessionID)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the end of the prefix range.
		seek := append(eventPrefix(sessionID), 0xFF)
		for it.Seek(seek); it.Valid() && len(events) < limit; it.Next() {
			var event datatypes.CopilotEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			if event.Type != datatypes.EventTranscript {
				continue
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *BadgerStore) scanEvents(_ context.Context, _ string, prefix []byte) ([]datatypes.CopilotEvent, error) {
	var events []datatypes.CopilotEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var event datatypes.CopilotEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
