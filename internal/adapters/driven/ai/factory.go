// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"time"

	ollamaembed "github.com/custodia-labs/lectern/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/lectern/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/lectern/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/lectern/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lectern/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, &domain.EmbeddingError{Op: "ping", Err: err}
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, &domain.GenerationError{Op: "ping", Err: err}
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// An unconfigured provider is not an error.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateAndValidateEmbeddingService(context.Background(), settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
// An unconfigured provider is not an error.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateAndValidateLLMService(context.Background(), settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// CreateEmbeddingService creates the embedding service selected by settings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, domain.NewConfigurationError("embedding", "not configured")
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI:
		if settings.APIKey == "" {
			return nil, domain.NewConfigurationError("embedding.api_key", "required for %s", settings.Provider)
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderAnthropic:
		return nil, domain.NewConfigurationError("embedding.provider",
			"anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, domain.NewConfigurationError("embedding.provider", "unsupported provider %q", settings.Provider)
	}
}

// CreateLLMService creates the LLM service selected by settings.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, domain.NewConfigurationError("llm", "not configured")
	}
	if settings.Provider.RequiresAPIKey() && settings.APIKey == "" {
		return nil, domain.NewConfigurationError("llm.api_key", "required for %s", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, domain.NewConfigurationError("llm.provider", "unsupported provider %q", settings.Provider)
	}
}
