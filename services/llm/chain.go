// Copyright (C) 2025 Sam Hanoun
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// =============================================================================
// Ordered Fallback Chain
// =============================================================================

// Chain is an ordered list of providers consumed by a single uniform loop.
//
// # Description
//
// Complete tries each provider in order. Unavailable providers are skipped
// without error; a failing provider's error is accumulated and the next
// provider is tried. The first success wins. Only when every provider is
// skipped or fails does Complete return an error.
//
// # Thread Safety
//
// Chain is immutable after construction and safe for concurrent use.
type Chain struct {
	providers []Provider
}

// NewChain creates a fallback chain over the given providers, in order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// NewChainFromEnv builds the default chain from LLM_PROVIDER_ORDER.
//
// # Description
//
// LLM_PROVIDER_ORDER is a comma-separated preference list, e.g.
// "openai,anthropic". Unknown names are skipped with a warning. When the
// variable is unset, the order defaults to openai then anthropic.
func NewChainFromEnv() *Chain {
	order := os.Getenv("LLM_PROVIDER_ORDER")
	if order == "" {
		order = "openai,anthropic"
	}

	var providers []Provider
	for _, name := range strings.Split(order, ",") {
		switch strings.TrimSpace(name) {
		case "openai":
			providers = append(providers, NewOpenAIClient())
		case "anthropic", "claude":
			providers = append(providers, NewAnthropicClient())
		case "":
		default:
			slog.Warn("llm.chain: unknown provider in LLM_PROVIDER_ORDER", "name", name)
		}
	}
	return NewChain(providers...)
}

// Name identifies the chain for logging.
func (c *Chain) Name() string { return "chain" }

// IsAvailable reports whether any provider in the chain is available.
func (c *Chain) IsAvailable() bool {
	for _, p := range c.providers {
		if p.IsAvailable() {
			return true
		}
	}
	return false
}

// Complete tries each provider in order and returns the first success.
//
// # Outputs
//
//   - string: The winning provider's completion text.
//   - error: ErrNoProviderAvailable (wrapped with per-provider causes) if
//     every provider was skipped or failed; ctx.Err() if cancelled between
//     attempts.
func (c *Chain) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error) {
	var errs []error

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !p.IsAvailable() {
			slog.Debug("llm.chain: skipping unavailable provider", "provider", p.Name())
			continue
		}

		text, err := p.Complete(ctx, messages, opts)
		if err == nil {
			return text, nil
		}
		slog.Warn("llm.chain: provider failed, falling through",
			"provider", p.Name(),
			"error", err,
		)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", ErrNoProviderAvailable, errors.Join(errs...))
	}
	return "", ErrNoProviderAvailable
}
