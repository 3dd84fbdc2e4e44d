package driving

import "github.com/custodia-labs/lectern/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.Settings, error)

	// Save validates and persists application settings.
	Save(settings *domain.Settings) error

	// Set updates one setting by its dotted key (e.g. "retrieval.top_k").
	Set(key, value string) error

	// Keys lists the settable keys in display order.
	Keys() []string

	// Display formats the value of key for output, masking secrets.
	Display(settings *domain.Settings, key string) string

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
