package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/connectors/filesystem"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

func TestIngestCmd_Flags(t *testing.T) {
	assert.Equal(t, "ingest [dir]", ingestCmd.Use)

	for name, short := range map[string]string{"recursive": "r", "jobs": "j", "watch": "w"} {
		flag := ingestCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, short, flag.Shorthand)
	}
}

func TestIngestCmd_ReportsBooks(t *testing.T) {
	ing := &fakeIngest{reports: []driving.BookReport{
		{Book: domain.NewBook("/books/Meditations - Marcus Aurelius.pdf"), Pages: 120, Chunks: 42},
		{Book: domain.NewBook("/books/Broken.pdf"), Err: domain.ErrUnsupportedFormat},
	}}
	defer setupTestServices(Services{Ingest: ing})()

	out, err := execute(t, "", "ingest", "-j", "2", "/books")

	require.NoError(t, err)
	assert.Equal(t, "/books", ing.dir)
	assert.Equal(t, 2, ing.opts.Jobs)
	assert.Contains(t, out, "ingested Meditations by Marcus Aurelius: 120 pages, 42 chunks")
	assert.Contains(t, out, "failed   Broken:")
	assert.Contains(t, out, "Ingested 42 chunks from 1 books in 1.5s (1 failed)")
}

func TestIngestCmd_DefaultsFromSettings(t *testing.T) {
	ing := &fakeIngest{}
	defer setupTestServices(Services{
		Ingest:  ing,
		Library: domain.LibrarySettings{BooksDir: "/srv/library", Recursive: true, Jobs: 4},
	})()

	out, err := execute(t, "", "ingest")

	require.NoError(t, err)
	assert.Equal(t, "/srv/library", ing.dir)
	assert.True(t, ing.opts.Recursive)
	assert.Contains(t, out, "Ingested 0 chunks from 0 books")
	assert.NotContains(t, out, "failed")
}

func TestIngestCmd_RecursiveFlagOverridesSettings(t *testing.T) {
	ing := &fakeIngest{}
	defer setupTestServices(Services{
		Ingest:  ing,
		Library: domain.LibrarySettings{BooksDir: "/srv/library", Recursive: true, Jobs: 4},
	})()

	_, err := execute(t, "", "ingest", "--recursive=false")

	require.NoError(t, err)
	assert.False(t, ing.opts.Recursive)
}

func TestIngestCmd_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		defer setupTestServices(Services{})()

		_, err := execute(t, "", "ingest", "/books")

		assert.ErrorIs(t, err, errIngestNotConfigured)
	})

	t.Run("missing directory", func(t *testing.T) {
		defer setupTestServices(Services{Ingest: &fakeIngest{err: domain.ErrNotFound}})()

		_, err := execute(t, "", "ingest", "/nope")

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "ingest failed")
	})
}

func TestApplyChanges(t *testing.T) {
	ing := &fakeIngest{}
	defer setupTestServices(Services{Ingest: ing})()

	changes := make(chan filesystem.Change, 3)
	changes <- filesystem.Change{Type: filesystem.ChangeUpserted, Book: domain.NewBook("/books/Walden - Thoreau.txt")}
	changes <- filesystem.Change{Type: filesystem.ChangeRemoved, Book: domain.NewBook("/books/Old - Anon.txt")}
	close(changes)

	cmd, out := testCommand()
	applyChanges(context.Background(), cmd, changes)

	assert.Equal(t, []string{"/books/Walden - Thoreau.txt"}, ing.ingested)
	assert.Equal(t, []string{"/books/Old - Anon.txt"}, ing.removed)
	assert.Contains(t, out.String(), "ingested Walden by Thoreau: 3 pages, 5 chunks")
	assert.Contains(t, out.String(), "removed  Old")
}

func TestApplyChanges_Failures(t *testing.T) {
	ing := &fakeIngest{bookErr: domain.ErrUnsupportedFormat, removeErr: errBoom}
	defer setupTestServices(Services{Ingest: ing})()

	changes := make(chan filesystem.Change, 2)
	changes <- filesystem.Change{Type: filesystem.ChangeUpserted, Book: domain.NewBook("/books/Scan.pdf")}
	changes <- filesystem.Change{Type: filesystem.ChangeRemoved, Book: domain.NewBook("/books/Gone.txt")}
	close(changes)

	cmd, out := testCommand()
	applyChanges(context.Background(), cmd, changes)

	assert.Contains(t, out.String(), "failed   Scan:")
	assert.NotContains(t, out.String(), "removed")
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	out := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd, out
}
