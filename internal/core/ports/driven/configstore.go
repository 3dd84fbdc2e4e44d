package driven

// ConfigStore persists settings under dotted keys such as
// "retrieval.top_k". Typed getters return the zero value when a key is
// missing or holds another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path locates the backing file, or ":memory:".
	Path() string
}
