// Package env overlays LECTERN_* environment variables on top of stored
// settings. Overrides are applied on every read and never persisted.
package env

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// Prefix is prepended to every variable name.
const Prefix = "LECTERN_"

// overrides mirrors the settable keys. Unset variables leave fields nil.
type overrides struct {
	ChunkSizeWords *int     `env:"CHUNK_SIZE_WORDS"`
	OverlapWords   *int     `env:"OVERLAP_WORDS"`
	Processors     []string `env:"PROCESSORS" envSeparator:","`

	TopK               *int     `env:"TOP_K"`
	ScoreThreshold     *float64 `env:"SCORE_THRESHOLD"`
	MaxContextWords    *int     `env:"MAX_CONTEXT_WORDS"`
	ExpandShortQueries *bool    `env:"EXPAND_SHORT_QUERIES"`

	Temperature *float64 `env:"TEMPERATURE"`
	MaxTokens   *int     `env:"MAX_TOKENS"`

	EmbeddingProvider  *string        `env:"EMBEDDING_PROVIDER"`
	EmbeddingModel     *string        `env:"EMBEDDING_MODEL"`
	EmbeddingBaseURL   *string        `env:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey    *string        `env:"EMBEDDING_API_KEY"`
	EmbeddingBatchSize *int           `env:"EMBEDDING_BATCH_SIZE"`
	EmbeddingRPS       *float64       `env:"EMBEDDING_REQUESTS_PER_SECOND"`
	EmbeddingTimeout   *time.Duration `env:"EMBEDDING_TIMEOUT"`

	LLMProvider *string        `env:"LLM_PROVIDER"`
	LLMModel    *string        `env:"LLM_MODEL"`
	LLMBaseURL  *string        `env:"LLM_BASE_URL"`
	LLMAPIKey   *string        `env:"LLM_API_KEY"`
	LLMTimeout  *time.Duration `env:"LLM_TIMEOUT"`

	StoreBackend *string `env:"STORE_BACKEND"`
	StorePath    *string `env:"STORE_PATH"`
	QdrantURL    *string `env:"QDRANT_URL"`
	QdrantAPIKey *string `env:"QDRANT_API_KEY"`
	Collection   *string `env:"COLLECTION"`

	RedisAddr     *string        `env:"REDIS_ADDR"`
	RedisPassword *string        `env:"REDIS_PASSWORD"`
	RedisDB       *int           `env:"REDIS_DB"`
	CacheTTL      *time.Duration `env:"CACHE_TTL"`

	BooksDir  *string `env:"BOOKS_DIR"`
	Recursive *bool   `env:"RECURSIVE"`
	Jobs      *int    `env:"JOBS"`
}

// LoadDotEnv loads variables from the given .env files, or ./.env when
// none are given. Missing files are ignored; variables already set in the
// environment win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Apply parses the environment and overlays every variable that is set.
func Apply(settings *domain.Settings) error {
	return apply(settings, env.Options{Prefix: Prefix})
}

// ApplyFrom is Apply reading from the given map instead of the process
// environment.
func ApplyFrom(settings *domain.Settings, vars map[string]string) error {
	return apply(settings, env.Options{Prefix: Prefix, Environment: vars})
}

func apply(s *domain.Settings, opts env.Options) error {
	var o overrides
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return domain.NewConfigurationError("environment", "%v", err)
	}

	set(&s.Chunking.ChunkSizeWords, o.ChunkSizeWords)
	set(&s.Chunking.OverlapWords, o.OverlapWords)
	if o.Processors != nil {
		s.Chunking.Processors = o.Processors
	}

	set(&s.Retrieval.TopK, o.TopK)
	set(&s.Retrieval.ScoreThreshold, o.ScoreThreshold)
	set(&s.Retrieval.MaxContextWords, o.MaxContextWords)
	set(&s.Retrieval.ExpandShortQueries, o.ExpandShortQueries)

	set(&s.Generation.Temperature, o.Temperature)
	set(&s.Generation.MaxTokens, o.MaxTokens)

	if err := setProvider(&s.Embedding.Provider, o.EmbeddingProvider, "EMBEDDING_PROVIDER"); err != nil {
		return err
	}
	set(&s.Embedding.Model, o.EmbeddingModel)
	set(&s.Embedding.BaseURL, o.EmbeddingBaseURL)
	set(&s.Embedding.APIKey, o.EmbeddingAPIKey)
	set(&s.Embedding.BatchSize, o.EmbeddingBatchSize)
	set(&s.Embedding.RequestsPerSecond, o.EmbeddingRPS)
	set(&s.Embedding.Timeout, o.EmbeddingTimeout)

	if err := setProvider(&s.LLM.Provider, o.LLMProvider, "LLM_PROVIDER"); err != nil {
		return err
	}
	set(&s.LLM.Model, o.LLMModel)
	set(&s.LLM.BaseURL, o.LLMBaseURL)
	set(&s.LLM.APIKey, o.LLMAPIKey)
	set(&s.LLM.Timeout, o.LLMTimeout)

	if o.StoreBackend != nil {
		backend := domain.StoreBackend(*o.StoreBackend)
		if !backend.IsValid() {
			return domain.NewConfigurationError(Prefix+"STORE_BACKEND", "unknown backend %q", *o.StoreBackend)
		}
		s.Store.Backend = backend
	}
	set(&s.Store.Path, o.StorePath)
	set(&s.Store.QdrantURL, o.QdrantURL)
	set(&s.Store.QdrantAPIKey, o.QdrantAPIKey)
	set(&s.Store.Collection, o.Collection)

	set(&s.Cache.RedisAddr, o.RedisAddr)
	set(&s.Cache.RedisPassword, o.RedisPassword)
	set(&s.Cache.RedisDB, o.RedisDB)
	set(&s.Cache.TTL, o.CacheTTL)

	set(&s.Library.BooksDir, o.BooksDir)
	set(&s.Library.Recursive, o.Recursive)
	set(&s.Library.Jobs, o.Jobs)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setProvider(dst *domain.AIProvider, v *string, name string) error {
	if v == nil {
		return nil
	}
	p := domain.AIProvider(*v)
	if !p.IsValid() {
		return domain.NewConfigurationError(Prefix+name, "unknown provider %q", *v)
	}
	*dst = p
	return nil
}
