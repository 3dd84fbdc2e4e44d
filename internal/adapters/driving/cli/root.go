// Package cli implements the lectern command line.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lectern/internal/connectors/filesystem"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

var (
	queryService    driving.QueryService
	responseService driving.ResponseService
	ingestService   driving.IngestService
	settingsService driving.SettingsService
	bookSupported   filesystem.SupportsFunc
	librarySettings = domain.DefaultSettings().Library
	startupErr      error
)

var (
	errQueryNotConfigured    = errors.New("query service not configured")
	errIngestNotConfigured   = errors.New("ingest service not configured")
	errSettingsNotConfigured = errors.New("settings service not configured")
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Ask questions about your book library",
	Long: `Lectern ingests a directory of books (PDF, text and Markdown), splits them
into overlapping passages, embeds them into a vector store and answers
questions from those passages with page-level citations.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logging to stderr")
}

// Services holds the core services the commands run against. Nil services
// make the commands that need them fail with a clear error.
type Services struct {
	Query    driving.QueryService
	Response driving.ResponseService
	Ingest   driving.IngestService
	Settings driving.SettingsService

	// Supports reports whether a file is an ingestible book.
	Supports filesystem.SupportsFunc

	// Library holds the default books directory and ingestion settings.
	Library domain.LibrarySettings

	// Err explains why the query path could not be built, for example a
	// missing embedding provider. It is reported by commands that need it.
	Err error
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	queryService = s.Query
	responseService = s.Response
	ingestService = s.Ingest
	settingsService = s.Settings
	bookSupported = s.Supports
	librarySettings = s.Library
	startupErr = s.Err
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Command output goes to stdout so it
// can be piped; diagnostics stay on stderr.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

func requireQuery() error {
	if queryService != nil {
		return nil
	}
	if startupErr != nil {
		return startupErr
	}
	return errQueryNotConfigured
}

func requireIngest() error {
	if ingestService != nil {
		return nil
	}
	if startupErr != nil {
		return startupErr
	}
	return errIngestNotConfigured
}
