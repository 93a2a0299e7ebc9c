// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for copilot components.
//
// The package is a thin layer over Go's standard slog package:
//
//   - Default: JSON output on stdout for container log collection
//   - Optional: file logging with automatic directory creation
//
// # Basic Usage
//
//	logger := logging.Default("copilot")
//	logger.Info("session created", "session_id", sessionID)
//
// # File Logging
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "/var/log/copilot",
//	    Service: "copilot",
//	})
//	defer logger.Close()
//
// This creates log files named `{service}_{date}.log` in JSON format.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers must
// ensure raw transcript text and tokens are not logged; log metadata only
// (lengths, counts, flags).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable issues (retries, degraded mode).
	LevelWarn

	// LevelError is for operation failures where the system continues.
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel converts our Level to slog.Level.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to a Level.
// Unknown strings fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN", "warning":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures the Logger behavior.
//
// A zero-value Config creates a logger writing Info+ JSON messages to stdout.
//
// # Fields
//
//   - Level: Minimum severity to emit.
//   - LogDir: Optional directory for file output. Empty disables file logging.
//   - Service: Service name used in the log file name and attached to every
//     record as the "service" attribute.
//   - Writer: Overrides the default stdout destination (used by tests).
type Config struct {
	Level   Level
	LogDir  string
	Service string
	Writer  io.Writer
}

// Logger wraps slog.Logger with optional file output.
//
// # Thread Safety
//
// Logger is safe for concurrent use. Close must only be called once all
// logging has stopped.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger from the given configuration.
//
// When LogDir is set, the directory is created if missing and a JSON log
// file named `{service}_{date}.log` is opened alongside the primary writer.
func New(cfg Config) (*Logger, error) {
	var w io.Writer = os.Stdout
	if cfg.Writer != nil {
		w = cfg.Writer
	}

	var file *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o750); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", cfg.LogDir, err)
		}
		name := fmt.Sprintf("%s_%s.log", serviceOrDefault(cfg.Service), time.Now().UTC().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		w = io.MultiWriter(w, f)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()})
	logger := slog.New(handler).With("service", serviceOrDefault(cfg.Service))

	return &Logger{Logger: logger, file: file}, nil
}

// Default returns a stdout JSON logger at Info level for the given service.
func Default(service string) *Logger {
	logger, _ := New(Config{Level: LevelInfo, Service: service})
	return logger
}

// Close flushes and closes the log file, if any. Safe to call multiple times.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func serviceOrDefault(service string) string {
	if service == "" {
		return "copilot"
	}
	return service
}
