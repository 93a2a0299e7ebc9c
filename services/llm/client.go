package llm

import (
	"context"
	"errors"
)

// ErrNoProviderAvailable is returned by a Chain when every configured
// provider is unavailable or failed.
var ErrNoProviderAvailable = errors.New("no LLM provider available")

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions carries generation parameters shared across providers.
type CompletionOptions struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Provider defines the standard interface for any LLM backend.
//
// Implementations are selected at runtime and consumed through an ordered
// fallback Chain; call sites never branch on the concrete provider.
type Provider interface {
	// Name identifies the provider for logging and metrics.
	Name() string

	// IsAvailable reports whether the provider is configured and usable.
	// Unavailable providers are skipped by the Chain without error.
	IsAvailable() bool

	// Complete sends the messages and returns the assistant's text.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
}
