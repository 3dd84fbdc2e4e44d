package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// setting binds a dotted config key to a field of domain.Settings.
type setting struct {
	key    string
	field  func(*domain.Settings) any
	secret bool
}

// settingsTable lists every persisted key in display order.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
var settingsTable = []setting{
	{key: "chunking.chunk_size_words", field: func(s *domain.Settings) any { return &s.Chunking.ChunkSizeWords }},
	{key: "chunking.overlap_words", field: func(s *domain.Settings) any { return &s.Chunking.OverlapWords }},
	{key: "chunking.processors", field: func(s *domain.Settings) any { return &s.Chunking.Processors }},
	{key: "retrieval.top_k", field: func(s *domain.Settings) any { return &s.Retrieval.TopK }},
	{key: "retrieval.score_threshold", field: func(s *domain.Settings) any { return &s.Retrieval.ScoreThreshold }},
	{key: "retrieval.max_context_words", field: func(s *domain.Settings) any { return &s.Retrieval.MaxContextWords }},
	{key: "retrieval.expand_short_queries", field: func(s *domain.Settings) any { return &s.Retrieval.ExpandShortQueries }},
	{key: "generation.temperature", field: func(s *domain.Settings) any { return &s.Generation.Temperature }},
	{key: "generation.max_tokens", field: func(s *domain.Settings) any { return &s.Generation.MaxTokens }},
	{key: "embedding.provider", field: func(s *domain.Settings) any { return &s.Embedding.Provider }},
	{key: "embedding.model", field: func(s *domain.Settings) any { return &s.Embedding.Model }},
	{key: "embedding.base_url", field: func(s *domain.Settings) any { return &s.Embedding.BaseURL }},
	{key: "embedding.api_key", field: func(s *domain.Settings) any { return &s.Embedding.APIKey }, secret: true},
	{key: "embedding.batch_size", field: func(s *domain.Settings) any { return &s.Embedding.BatchSize }},
	{key: "embedding.requests_per_second", field: func(s *domain.Settings) any { return &s.Embedding.RequestsPerSecond }},
	{key: "embedding.timeout", field: func(s *domain.Settings) any { return &s.Embedding.Timeout }},
	{key: "llm.provider", field: func(s *domain.Settings) any { return &s.LLM.Provider }},
	{key: "llm.model", field: func(s *domain.Settings) any { return &s.LLM.Model }},
	{key: "llm.base_url", field: func(s *domain.Settings) any { return &s.LLM.BaseURL }},
	{key: "llm.api_key", field: func(s *domain.Settings) any { return &s.LLM.APIKey }, secret: true},
	{key: "llm.timeout", field: func(s *domain.Settings) any { return &s.LLM.Timeout }},
	{key: "store.backend", field: func(s *domain.Settings) any { return &s.Store.Backend }},
	{key: "store.path", field: func(s *domain.Settings) any { return &s.Store.Path }},
	{key: "store.qdrant_url", field: func(s *domain.Settings) any { return &s.Store.QdrantURL }},
	{key: "store.qdrant_api_key", field: func(s *domain.Settings) any { return &s.Store.QdrantAPIKey }, secret: true},
	{key: "store.collection", field: func(s *domain.Settings) any { return &s.Store.Collection }},
	{key: "cache.redis_addr", field: func(s *domain.Settings) any { return &s.Cache.RedisAddr }},
	{key: "cache.redis_password", field: func(s *domain.Settings) any { return &s.Cache.RedisPassword }, secret: true},
	{key: "cache.redis_db", field: func(s *domain.Settings) any { return &s.Cache.RedisDB }},
	{key: "cache.ttl", field: func(s *domain.Settings) any { return &s.Cache.TTL }},
	{key: "library.books_dir", field: func(s *domain.Settings) any { return &s.Library.BooksDir }},
	{key: "library.recursive", field: func(s *domain.Settings) any { return &s.Library.Recursive }},
	{key: "library.jobs", field: func(s *domain.Settings) any { return &s.Library.Jobs }},
}

// SettingsService manages application settings. Values resolve as
// overrides, then the config store, then defaults.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	overrides   func(*domain.Settings) error
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// SetOverrides installs a hook applied on top of stored settings by Get,
// typically environment variables. Overrides are never persisted.
func (s *SettingsService) SetOverrides(fn func(*domain.Settings) error) {
	s.overrides = fn
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	settings := s.stored()
	if s.overrides != nil {
		if err := s.overrides(settings); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}
	return settings, nil
}

// Save validates and persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	for _, st := range settingsTable {
		value := storedValue(st.field(settings))
		if st.secret && value == "" {
			continue
		}
		if err := s.configStore.Set(st.key, value); err != nil {
			return fmt.Errorf("save %s: %w", st.key, err)
		}
	}
	return nil
}

// Set parses value into the setting named key and persists it. The
// resulting settings must validate.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	settings := s.stored()
	field := st.field(settings)
	if err := parseInto(field, value); err != nil {
		return domain.NewConfigurationError(key, "%v", err)
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.configStore.Set(key, storedValue(field)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the settable keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingsTable))
	for i, st := range settingsTable {
		keys[i] = st.key
	}
	return keys
}

// Display returns the current value of key formatted for output, with
// secrets masked.
func (s *SettingsService) Display(settings *domain.Settings, key string) string {
	st, ok := lookupSetting(key)
	if !ok {
		return ""
	}
	value := formatValue(st.field(settings))
	if st.secret && value != "" {
		return maskSecret(value)
	}
	return value
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// stored reads the config store over the defaults. Values of the wrong
// type are ignored.
func (s *SettingsService) stored() *domain.Settings {
	settings := domain.DefaultSettings()
	for _, st := range settingsTable {
		raw, ok := s.configStore.Get(st.key)
		if !ok {
			continue
		}
		field := st.field(&settings)
		if list, isList := field.(*[]string); isList {
			if values := s.configStore.GetStringSlice(st.key); values != nil {
				*list = values
			}
			continue
		}
		_ = parseInto(field, formatRaw(raw))
	}
	return &settings
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

// parseInto parses a string into the field pointer.
func parseInto(field any, value string) error {
	value = strings.TrimSpace(value)
	switch f := field.(type) {
	case *string:
		*f = value
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("not an integer: %q", value)
		}
		*f = n
	case *float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", value)
		}
		*f = n
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", value)
		}
		*f = b
	case *time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("not a duration: %q", value)
		}
		*f = d
	case *[]string:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*f = items
	case *domain.AIProvider:
		p := domain.AIProvider(value)
		if !p.IsValid() {
			return fmt.Errorf("unknown provider %q", value)
		}
		*f = p
	case *domain.StoreBackend:
		b := domain.StoreBackend(value)
		if !b.IsValid() {
			return fmt.Errorf("unknown backend %q", value)
		}
		*f = b
	default:
		return fmt.Errorf("unsupported setting type %T", field)
	}
	return nil
}

// storedValue converts a field to the value written to the config store.
func storedValue(field any) any {
	switch f := field.(type) {
	case *string:
		return *f
	case *int:
		return *f
	case *float64:
		return *f
	case *bool:
		return *f
	case *time.Duration:
		return f.String()
	case *[]string:
		return append([]string{}, *f...)
	case *domain.AIProvider:
		return f.String()
	case *domain.StoreBackend:
		return f.String()
	default:
		return nil
	}
}

func formatValue(field any) string {
	if list, ok := field.(*[]string); ok {
		return strings.Join(*list, ",")
	}
	return formatRaw(storedValue(field))
}

func formatRaw(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// maskSecret shows only the last four characters of a secret.
func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
