package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/services"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func newTestSettings(t *testing.T) *services.SettingsService {
	t.Helper()
	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return services.NewSettingsService(store, nil)
}

func TestSettingsCmd_Show(t *testing.T) {
	svc := newTestSettings(t)
	require.NoError(t, svc.Set("llm.api_key", "sk-supersecret"))
	defer setupTestServices(Services{Settings: svc})()

	out, err := execute(t, "", "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "[chunking]")
	assert.Contains(t, out, "chunk_size_words")
	assert.Contains(t, out, "400")
	assert.Contains(t, out, "****cret")
	assert.NotContains(t, out, "sk-supersecret")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsCmd_SetAndKeys(t *testing.T) {
	svc := newTestSettings(t)
	defer setupTestServices(Services{Settings: svc})()

	out, err := execute(t, "", "settings", "set", "retrieval.top_k", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "retrieval.top_k = 5")

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, settings.Retrieval.TopK)

	out, err = execute(t, "", "settings", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "store.backend\n")
}

func TestSettingsCmd_SetRejectsInvalid(t *testing.T) {
	svc := newTestSettings(t)
	defer setupTestServices(Services{Settings: svc})()

	_, err := execute(t, "", "settings", "set", "chunking.overlap_words", "400")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = execute(t, "", "settings", "set", "nope", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsCmd_Embedding(t *testing.T) {
	svc := newTestSettings(t)
	defer setupTestServices(Services{Settings: svc})()

	// second provider (openai), custom model, API key
	out, err := execute(t, "2\ntext-embedding-3-large\nsk-test\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Contains(t, out, "Validating configuration... OK")
	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
}

func TestSettingsCmd_LLMDefaults(t *testing.T) {
	svc := newTestSettings(t)
	defer setupTestServices(Services{Settings: svc})()

	out, err := execute(t, "\n\n", "settings", "llm")

	require.NoError(t, err)
	assert.Contains(t, out, "LLM provider configured: Ollama (local) (llama3.2)")
	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.LLM.Provider)
	assert.Equal(t, "llama3.2", settings.LLM.Model)
}

func TestSettingsCmd_MissingAPIKey(t *testing.T) {
	svc := newTestSettings(t)
	defer setupTestServices(Services{Settings: svc})()

	_, err := execute(t, "3\n\n\n", "settings", "llm")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestSettingsCmd_NotConfigured(t *testing.T) {
	defer setupTestServices(Services{})()

	_, err := execute(t, "", "settings", "show")

	assert.ErrorIs(t, err, errSettingsNotConfigured)
}
