// Package storage selects a retrieval store backend from settings.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/chromemdb"
	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// DefaultDataDir is where file-backed stores live when no path is set.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".lectern", "data"), nil
}

// New opens the retrieval store named by settings.Backend.
func New(settings domain.StoreSettings) (driven.RetrievalStore, error) {
	switch settings.Backend {
	case domain.StoreBackendSQLite, "":
		return sqlite.NewStore(settings.Path)
	case domain.StoreBackendMemory:
		return memory.NewRetrievalStore(), nil
	case domain.StoreBackendChromem:
		dir := settings.Path
		if dir == "" {
			var err error
			if dir, err = DefaultDataDir(); err != nil {
				return nil, err
			}
		}
		return chromemdb.NewStore(dir, collectionName(settings))
	case domain.StoreBackendQdrant:
		if settings.QdrantURL == "" {
			return nil, domain.NewConfigurationError("store.qdrant_url", "required for the qdrant backend")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:        settings.QdrantURL,
			APIKey:     settings.QdrantAPIKey,
			Collection: collectionName(settings),
		}), nil
	default:
		return nil, domain.NewConfigurationError("store.backend", "unknown backend %q", settings.Backend)
	}
}

func collectionName(settings domain.StoreSettings) string {
	if settings.Collection == "" {
		return domain.DefaultCollection
	}
	return settings.Collection
}
