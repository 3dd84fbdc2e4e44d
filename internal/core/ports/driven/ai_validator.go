package driven

import "github.com/custodia-labs/lectern/internal/core/domain"

// AIConfigValidator checks provider settings before they are saved, by
// building the client and pinging it. Settings for a provider that is not
// configured yet pass.
type AIConfigValidator interface {
	ValidateEmbedding(config *domain.EmbeddingSettings) error
	ValidateLLM(config *domain.LLMSettings) error
}
