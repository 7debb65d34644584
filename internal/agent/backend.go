// Package agent implements the conversational layer: natural language in,
// promptvc commands out. The versioning core never depends on this
// package; the agent only produces command strings that the CLI executes.
package agent

import (
	"context"
	"errors"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Backend is the single capability the agent needs from an LLM provider.
// Implementations exist per provider and are interchangeable.
type Backend interface {
	// Generate produces a completion for the conversation.
	Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)

	// IsAvailable reports whether the backend is usable (credentials
	// present, local server reachable).
	IsAvailable() bool

	// Name returns the provider identifier, e.g. "openai".
	Name() string
}

// ErrNoBackend is returned when no LLM backend can be auto-detected.
var ErrNoBackend = errors.New(
	"no LLM backend available: set OPENAI_API_KEY or ANTHROPIC_API_KEY, or run Ollama locally")

// DetectBackend returns the first available backend, in order of
// preference: OpenAI, Anthropic, Ollama.
func DetectBackend(candidates ...Backend) (Backend, error) {
	for _, b := range candidates {
		if b != nil && b.IsAvailable() {
			return b, nil
		}
	}
	return nil, ErrNoBackend
}
