package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lectern/internal/connectors/filesystem"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
)

var (
	ingestRecursive bool
	ingestJobs      int
	ingestWatch     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest a directory of books",
	Long: `Extracts every PDF, text and Markdown book in the directory, splits it into
overlapping passages, embeds them and stores them. A book that was ingested
before is replaced as a whole. A failing book is reported and the others
continue.

File names of the form "Title - Author.pdf" set the title and author.

With --watch the command keeps running and re-ingests books as their files
change, removing books whose files are deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "also ingest books in subdirectories")
	ingestCmd.Flags().IntVarP(&ingestJobs, "jobs", "j", 0, "books processed concurrently (default from settings)")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the directory for changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireIngest(); err != nil {
		return err
	}

	dir := librarySettings.BooksDir
	if len(args) > 0 {
		dir = args[0]
	}
	recursive := librarySettings.Recursive
	if cmd.Flags().Changed("recursive") {
		recursive = ingestRecursive
	}

	ctx := cmd.Context()
	report, err := ingestService.IngestLibrary(ctx, dir, driving.IngestOptions{
		Recursive: recursive,
		Jobs:      ingestJobs,
		Progress: func(r driving.BookReport) {
			printBookReport(cmd, r)
		},
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	failed := report.Failed()
	cmd.Printf("\nIngested %d chunks from %d books in %s",
		report.TotalChunks(), len(report.Books)-len(failed), report.Duration.Round(time.Millisecond))
	if len(failed) > 0 {
		cmd.Printf(" (%d failed)", len(failed))
	}
	cmd.Println()

	if !ingestWatch {
		return nil
	}

	lib := filesystem.New(dir, bookSupported, filesystem.WithRecursive(recursive))
	defer lib.Close()

	changes, err := lib.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	cmd.Printf("Watching %s for changes (ctrl+c to stop)\n", dir)
	applyChanges(ctx, cmd, changes)
	return nil
}

// applyChanges re-ingests or removes books until changes is closed.
func applyChanges(ctx context.Context, cmd *cobra.Command, changes <-chan filesystem.Change) {
	for change := range changes {
		path := change.Book.SourcePath
		switch change.Type {
		case filesystem.ChangeRemoved:
			if err := ingestService.RemoveBook(ctx, path); err != nil {
				logger.Error("removing %s: %v", path, err)
				continue
			}
			cmd.Printf("removed  %s\n", change.Book.Title)
		case filesystem.ChangeUpserted:
			report, err := ingestService.IngestBook(ctx, path)
			if err != nil && report == nil {
				logger.Error("ingesting %s: %v", path, err)
				continue
			}
			printBookReport(cmd, *report)
		}
	}
}

func printBookReport(cmd *cobra.Command, r driving.BookReport) {
	if !r.Succeeded() {
		cmd.Printf("failed   %s: %v\n", r.Book.Title, r.Err)
		return
	}
	cmd.Printf("ingested %s by %s: %d pages, %d chunks\n", r.Book.Title, r.Book.Author, r.Pages, r.Chunks)
}
