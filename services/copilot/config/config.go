// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads service configuration.
//
// Defaults are overridden first by an optional YAML file (COPILOT_CONFIG),
// then by individual environment variables, so containers can ship a baseline
// file and still tune single knobs per deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every operational knob of the copilot service.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// DataDir is the BadgerDB directory.
	DataDir string `yaml:"data_dir"`

	// HeartbeatTimeoutSeconds is the inactivity window after which an
	// active session is lazily expired.
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`

	// StreamPollMillis is the sleep between streaming-loop iterations.
	StreamPollMillis int `yaml:"stream_poll_millis"`

	// RateLimitPerMinute caps requests per identity per route.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// RateLimitBurst is the limiter's burst allowance.
	RateLimitBurst int `yaml:"rate_limit_burst"`

	// TranscriptWindow is the number of recent transcript turns fed to
	// the suggestion prompt.
	TranscriptWindow int `yaml:"transcript_window"`

	// LLMTimeoutSeconds bounds each provider call.
	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"log_dir"`

	// OTLPEndpoint is the OpenTelemetry collector address. Tracing is
	// disabled when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the built-in baseline configuration.
func Default() Config {
	return Config{
		Port:                    8014,
		DataDir:                 "./data/copilot",
		HeartbeatTimeoutSeconds: 180,
		StreamPollMillis:        1000,
		RateLimitPerMinute:      120,
		RateLimitBurst:          20,
		TranscriptWindow:        16,
		LLMTimeoutSeconds:       30,
		LogLevel:                "info",
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// named by COPILOT_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("COPILOT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envInt("COPILOT_PORT", &cfg.Port)
	envString("COPILOT_DATA_DIR", &cfg.DataDir)
	envInt("COPILOT_HEARTBEAT_TIMEOUT_SECONDS", &cfg.HeartbeatTimeoutSeconds)
	envInt("COPILOT_STREAM_POLL_MS", &cfg.StreamPollMillis)
	envInt("COPILOT_RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)
	envInt("COPILOT_RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	envInt("COPILOT_TRANSCRIPT_WINDOW", &cfg.TranscriptWindow)
	envInt("COPILOT_LLM_TIMEOUT_SECONDS", &cfg.LLMTimeoutSeconds)
	envString("COPILOT_LOG_LEVEL", &cfg.LogLevel)
	envString("COPILOT_LOG_DIR", &cfg.LogDir)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.HeartbeatTimeoutSeconds <= 0 {
		return fmt.Errorf("heartbeat timeout must be positive, got %d", c.HeartbeatTimeoutSeconds)
	}
	if c.StreamPollMillis <= 0 {
		return fmt.Errorf("stream poll interval must be positive, got %d", c.StreamPollMillis)
	}
	if c.TranscriptWindow <= 0 {
		return fmt.Errorf("transcript window must be positive, got %d", c.TranscriptWindow)
	}
	return nil
}

// HeartbeatTimeout returns the inactivity window as a duration.
func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// StreamPollInterval returns the poll sleep as a duration.
func (c Config) StreamPollInterval() time.Duration {
	return time.Duration(c.StreamPollMillis) * time.Millisecond
}

// LLMTimeout returns the per-provider-call bound as a duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}
