// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides language model completions.
//
// Implementations may include:
//   - OpenAI compatible APIs (OpenAI, Groq)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a complete answer for a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Stream produces the same answer as Generate as a sequence of fragments.
	// The caller must Close the stream, whether or not it was exhausted.
	Stream(ctx context.Context, prompt string, opts GenerateOptions) (FragmentStream, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// System is the system instruction sent ahead of the prompt.
	System string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// FragmentStream is a finite, non-restartable sequence of answer fragments.
//
// Next returns fragments in emission order and io.EOF once the answer is
// complete. Close releases the underlying connection; it may be called at
// any point to abandon the stream and is safe to call more than once.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}
