package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lectern/internal/adapters/driving/repl"
	"github.com/custodia-labs/lectern/internal/core/domain"
)

var (
	askStream bool
	askBook   string
	askAuthor string
	askTopK   int

	sourcesBook   string
	sourcesAuthor string
	sourcesTopK   int
	sourcesJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the library",
	Long: `Retrieves the passages most similar to the question and asks the language
model to answer from them only, citing each passage as [n].

Examples:
  lectern ask "What does Marcus Aurelius say about anger?"
  lectern ask --stream --book Walden "Why did Thoreau go to the woods?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [question]",
	Short: "Show the passages matching a question",
	Long:  `Runs retrieval only and lists the matching passages with their relevance.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSources,
}

func init() {
	askCmd.Flags().BoolVarP(&askStream, "stream", "s", false, "print the answer as it is generated")
	askCmd.Flags().StringVar(&askBook, "book", "", "only use passages from books whose title matches")
	askCmd.Flags().StringVar(&askAuthor, "author", "", "only use passages from books by this author")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "n", 0, "maximum passages to retrieve (default from settings)")

	sourcesCmd.Flags().StringVar(&sourcesBook, "book", "", "only search books whose title matches")
	sourcesCmd.Flags().StringVar(&sourcesAuthor, "author", "", "only search books by this author")
	sourcesCmd.Flags().IntVarP(&sourcesTopK, "top-k", "n", 0, "maximum passages to return (default from settings)")
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "output passages as JSON")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireQuery(); err != nil {
		return err
	}
	if responseService == nil {
		return repl.ErrAnswersDisabled
	}

	query := strings.Join(args, " ")
	filters := repl.Filters{Book: askBook, Author: askAuthor}

	var command repl.Command = repl.Ask{Query: query, Filters: filters}
	if askStream {
		command = repl.Stream{Query: query, Filters: filters}
	}
	session := repl.NewSession(queryService, responseService, cmd.InOrStdin(), cmd.OutOrStdout(), repl.WithTopK(askTopK))
	_, err := session.Execute(cmd.Context(), command)
	return err
}

func runSources(cmd *cobra.Command, args []string) error {
	if err := requireQuery(); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	filters := repl.Filters{Book: sourcesBook, Author: sourcesAuthor}

	if sourcesJSON {
		opts := filters.Options()
		opts.TopK = sourcesTopK
		result, err := queryService.ProcessQuery(cmd.Context(), query, opts)
		if err != nil {
			return err
		}
		return outputSourcesJSON(cmd, result)
	}

	session := repl.NewSession(queryService, nil, cmd.InOrStdin(), cmd.OutOrStdout(), repl.WithTopK(sourcesTopK))
	_, err := session.Execute(cmd.Context(), repl.Sources{Query: query, Filters: filters})
	return err
}

// passageJSON is the JSON shape of one retrieved passage.
type passageJSON struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	Author  string  `json:"author"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

func outputSourcesJSON(cmd *cobra.Command, result *domain.QueryResult) error {
	passages := make([]passageJSON, len(result.Results))
	for i := range result.Results {
		c := &result.Results[i].Chunk
		passages[i] = passageJSON{
			ChunkID: c.ID,
			Title:   c.Title,
			Author:  c.Author,
			Page:    c.PageNumber,
			Score:   result.Results[i].Score,
			Text:    c.Text,
		}
	}
	data, err := json.MarshalIndent(passages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
