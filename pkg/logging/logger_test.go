// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestParseLevel_KnownValues tests that level strings map to the right Level.
func TestParseLevel_KnownValues(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestNew_WritesJSONWithServiceAttr tests that records carry the service
// attribute and are valid JSON.
func TestNew_WritesJSONWithServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelInfo, Service: "copilot-test", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("session created", "session_id", "s-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if record["service"] != "copilot-test" {
		t.Errorf("service attr = %v, want copilot-test", record["service"])
	}
	if record["session_id"] != "s-1" {
		t.Errorf("session_id attr = %v, want s-1", record["session_id"])
	}
}

// TestNew_LevelFiltersDebug tests that Debug records are dropped at Info level.
func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should have been filtered")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info record missing from output")
	}
}

// TestNew_FileLogging tests that a log file is created and Close is idempotent.
func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelInfo, LogDir: dir, Service: "copilot", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("persisted line")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %d (err=%v)", len(entries), err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted line") {
		t.Error("log file missing persisted record")
	}
}
