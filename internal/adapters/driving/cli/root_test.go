package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

func TestRootCmd_Commands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ask", "sources", "chat", "stats", "books", "ingest", "settings", "mcp", "tui", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")

	if assert.NotNil(t, flag) {
		assert.Equal(t, "v", flag.Shorthand)
	}
}

func TestSetServices_RestoresLibrarySettings(t *testing.T) {
	lib := domain.LibrarySettings{BooksDir: "/data/books", Jobs: 2}
	restore := setupTestServices(Services{Library: lib})

	assert.Equal(t, lib, librarySettings)
	restore()
	assert.NotEqual(t, lib, librarySettings)
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestRequire_PrefersStartupError(t *testing.T) {
	defer setupTestServices(Services{Err: errBoom})()

	assert.ErrorIs(t, requireQuery(), errBoom)
	assert.ErrorIs(t, requireIngest(), errBoom)
}
