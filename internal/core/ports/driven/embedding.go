// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// For a fixed model version the same text must always produce the same vector.
//
// Implementations may include:
//   - OpenAI compatible APIs (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per text, in input order.
	// It fails as a unit: no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	// Zero means the size is learned from the first response.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingCache stores embeddings keyed by model and text hash.
// Cache failures are never fatal to callers.
type EmbeddingCache interface {
	// Get returns the cached vector and whether it was found.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Set stores a vector.
	Set(ctx context.Context, key string, vector []float32) error

	// Close releases resources.
	Close() error
}
