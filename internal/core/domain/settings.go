package domain

import (
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any compatible endpoint (e.g. Groq).
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI compatible (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// StoreBackend identifies a retrieval store implementation.
type StoreBackend string

// Available store backends.
const (
	// StoreBackendSQLite keeps chunks and vectors in a local SQLite file.
	StoreBackendSQLite StoreBackend = "sqlite"

	// StoreBackendMemory keeps chunks in process memory only.
	StoreBackendMemory StoreBackend = "memory"

	// StoreBackendChromem uses the chromem-go embedded vector database.
	StoreBackendChromem StoreBackend = "chromem"

	// StoreBackendQdrant uses a Qdrant server over its REST API.
	StoreBackendQdrant StoreBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendSQLite, StoreBackendMemory, StoreBackendChromem, StoreBackendQdrant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StoreBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StoreBackend) Description() string {
	switch b {
	case StoreBackendSQLite:
		return "SQLite (local file)"
	case StoreBackendMemory:
		return "Memory (not persisted)"
	case StoreBackendChromem:
		return "chromem-go (embedded)"
	case StoreBackendQdrant:
		return "Qdrant (server)"
	default:
		return unknownDescription
	}
}

// ChunkingSettings controls how books are split into chunks.
type ChunkingSettings struct {
	// ChunkSizeWords is the number of words per chunk.
	ChunkSizeWords int

	// OverlapWords is the number of words shared by consecutive chunks.
	OverlapWords int

	// Processors are the page clean-up stages run before chunking.
	Processors []string
}

// RetrievalSettings controls search and context assembly.
type RetrievalSettings struct {
	// TopK is the maximum number of search results.
	TopK int

	// ScoreThreshold drops results with a lower cosine similarity.
	ScoreThreshold float64

	// MaxContextWords is the word budget of the assembled context.
	MaxContextWords int

	// ExpandShortQueries rewrites short queries as "What is <q>?".
	ExpandShortQueries bool
}

// GenerationSettings controls answer generation.
type GenerationSettings struct {
	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the answer length.
	MaxTokens int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts sent per request.
	BatchSize int

	// RequestsPerSecond limits embedding calls. Zero disables limiting.
	RequestsPerSecond float64

	// Timeout bounds each request.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds each request, including a full stream.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StoreSettings selects and configures the retrieval store.
type StoreSettings struct {
	// Backend is the store implementation.
	Backend StoreBackend

	// Path is the data directory for file-backed stores.
	Path string

	// QdrantURL is the Qdrant REST endpoint.
	QdrantURL string

	// QdrantAPIKey is sent as the api-key header when set.
	QdrantAPIKey string

	// Collection is the collection name for server-backed stores.
	Collection string
}

// CacheSettings configures the optional embedding cache.
type CacheSettings struct {
	// RedisAddr enables the Redis cache when set (host:port).
	RedisAddr string

	// RedisPassword authenticates to Redis.
	RedisPassword string

	// RedisDB selects the Redis database.
	RedisDB int

	// TTL is how long cached embeddings live. Zero keeps them forever.
	TTL time.Duration
}

// IsEnabled returns true if a cache is configured.
func (c CacheSettings) IsEnabled() bool {
	return c.RedisAddr != ""
}

// LibrarySettings locates the books to ingest.
type LibrarySettings struct {
	// BooksDir is the directory scanned for books.
	BooksDir string

	// Recursive also scans subdirectories.
	Recursive bool

	// Jobs is the number of books ingested concurrently.
	Jobs int
}

// Settings holds all configuration consumed by the core. It is passed
// explicitly to constructors; no component reads ambient configuration.
type Settings struct {
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Generation GenerationSettings
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Store      StoreSettings
	Cache      CacheSettings
	Library    LibrarySettings
}

// Defaults for the core configuration surface.
const (
	DefaultChunkSizeWords     = 400
	DefaultOverlapWords       = 50
	DefaultTopK               = 10
	DefaultScoreThreshold     = 0.5
	DefaultMaxContextWords    = 2000
	DefaultTemperature        = 0.2
	DefaultMaxTokens          = 1024
	DefaultEmbeddingBatchSize = 32
	DefaultCollection         = "book_library"
	DefaultBooksDir           = "books"
	DefaultIngestJobs         = 2
)

// DefaultSettings returns settings with sensible defaults.
// Providers default to a local Ollama so the tool works without API keys.
func DefaultSettings() Settings {
	return Settings{
		Chunking: ChunkingSettings{
			ChunkSizeWords: DefaultChunkSizeWords,
			OverlapWords:   DefaultOverlapWords,
			Processors:     []string{"dehyphenate", "whitespace"},
		},
		Retrieval: RetrievalSettings{
			TopK:               DefaultTopK,
			ScoreThreshold:     DefaultScoreThreshold,
			MaxContextWords:    DefaultMaxContextWords,
			ExpandShortQueries: true,
		},
		Generation: GenerationSettings{
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BatchSize: DefaultEmbeddingBatchSize,
			Timeout:   30 * time.Second,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
			Timeout:  2 * time.Minute,
		},
		Store: StoreSettings{
			Backend:    StoreBackendSQLite,
			QdrantURL:  "http://localhost:6333",
			Collection: DefaultCollection,
		},
		Library: LibrarySettings{
			BooksDir: DefaultBooksDir,
			Jobs:     DefaultIngestJobs,
		},
	}
}

// ValidateChunking checks chunking parameters.
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return NewConfigurationError("chunk_size_words", "must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return NewConfigurationError("overlap_words", "must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return NewConfigurationError("overlap_words",
			"must be smaller than chunk_size_words (%d), got %d", chunkSize, overlap)
	}
	return nil
}

// ValidateRetrieval checks search parameters.
func ValidateRetrieval(topK int, threshold float64) error {
	if topK < 1 {
		return NewConfigurationError("top_k", "must be at least 1, got %d", topK)
	}
	if threshold < -1 || threshold > 1 {
		return NewConfigurationError("score_threshold", "must be within [-1, 1], got %g", threshold)
	}
	return nil
}

// Validate checks every section and returns the first problem found.
func (s Settings) Validate() error {
	if err := ValidateChunking(s.Chunking.ChunkSizeWords, s.Chunking.OverlapWords); err != nil {
		return err
	}
	if err := ValidateRetrieval(s.Retrieval.TopK, s.Retrieval.ScoreThreshold); err != nil {
		return err
	}
	if s.Retrieval.MaxContextWords <= 0 {
		return NewConfigurationError("max_context_words", "must be positive, got %d", s.Retrieval.MaxContextWords)
	}
	if s.Generation.Temperature < 0 || s.Generation.Temperature > 2 {
		return NewConfigurationError("temperature", "must be within [0, 2], got %g", s.Generation.Temperature)
	}
	if s.Generation.MaxTokens <= 0 {
		return NewConfigurationError("max_tokens", "must be positive, got %d", s.Generation.MaxTokens)
	}
	if s.Embedding.BatchSize <= 0 {
		return NewConfigurationError("embedding.batch_size", "must be positive, got %d", s.Embedding.BatchSize)
	}
	if !s.Embedding.Provider.IsValid() || s.Embedding.Provider == AIProviderAnthropic {
		return NewConfigurationError("embedding.provider", "unsupported provider %q", s.Embedding.Provider)
	}
	if !s.LLM.Provider.IsValid() {
		return NewConfigurationError("llm.provider", "unsupported provider %q", s.LLM.Provider)
	}
	if !s.Store.Backend.IsValid() {
		return NewConfigurationError("store.backend", "unsupported backend %q", s.Store.Backend)
	}
	if s.Library.Jobs <= 0 {
		return NewConfigurationError("library.jobs", "must be positive, got %d", s.Library.Jobs)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllStoreBackends returns all retrieval store backends.
func AllStoreBackends() []StoreBackend {
	return []StoreBackend{
		StoreBackendSQLite,
		StoreBackendMemory,
		StoreBackendChromem,
		StoreBackendQdrant,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

