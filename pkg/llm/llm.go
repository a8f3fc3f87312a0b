// Package llm wraps the model provider behind a small completion
// interface and exposes the typed, permissively-parsed operations the
// orchestrator calls.
package llm

import "context"

// CompleteOptions holds options for a completion call.
type CompleteOptions struct {
	CacheSystemPrompt bool // Enable prompt caching for the system prompt
}

// CompleteOption is a functional option for Complete.
type CompleteOption func(*CompleteOptions)

// WithCacheControl marks the system prompt as cacheable. Used on calls
// whose system prompt is large and repeated verbatim (SQL generation,
// report planning).
func WithCacheControl() CompleteOption {
	return func(o *CompleteOptions) {
		o.CacheSystemPrompt = true
	}
}

// Completer is the single-call LLM contract. Implementations must be safe
// for concurrent use.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error)
}
