package postprocessors

import (
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/postprocessors/chunker"
	"github.com/custodia-labs/lectern/internal/postprocessors/textclean"
)

// RegisterDefaults registers all built-in page processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("dehyphenate", func(map[string]any) (driven.PageProcessor, error) {
		return textclean.NewDehyphenator(), nil
	})
	r.Register("whitespace", func(map[string]any) (driven.PageProcessor, error) {
		return textclean.NewWhitespaceNormaliser(), nil
	})
	r.Register("symbols", func(map[string]any) (driven.PageProcessor, error) {
		return textclean.NewSymbolStripper(), nil
	})
}

// BuildChunker creates a chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Words per chunk (default: 400)
//   - overlap (int): Overlapping words between chunks (default: 50)
//
// Invalid values are reported, not corrected.
func BuildChunker(cfg map[string]any) (*chunker.Chunker, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...)
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
