package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lectern/internal/adapters/driving/repl"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	Long:  `Counts the stored passages, books and distinct authors.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLibraryCommand(cmd, repl.Stats{})
	},
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List ingested books",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLibraryCommand(cmd, repl.Books{})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question session",
	Long: `Reads questions line by line and answers them from the library.

Commands inside the session:
  <question>                  answer from the library
  stream <question>           answer as it is generated
  sources <question>          show matching passages only
  book:<title> - <question>   restrict to one book
  author:<name> - <question>  restrict to one author
  stats, books, help, quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(booksCmd)
	rootCmd.AddCommand(chatCmd)
}

func runLibraryCommand(cmd *cobra.Command, command repl.Command) error {
	if err := requireQuery(); err != nil {
		return err
	}
	session := repl.NewSession(queryService, responseService, cmd.InOrStdin(), cmd.OutOrStdout())
	_, err := session.Execute(cmd.Context(), command)
	return err
}

func runChat(cmd *cobra.Command, _ []string) error {
	if err := requireQuery(); err != nil {
		return err
	}
	session := repl.NewSession(queryService, responseService, cmd.InOrStdin(), cmd.OutOrStdout())
	return session.Run(cmd.Context())
}
