package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lectern/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes the library to AI assistants:
  search  passages matching a question, with title, author and page
  ask     a cited answer (needs a configured language model)
  stats   chunk, book and author counts
  lectern://books  the ingested books

By default, the server communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead, which also serves
Prometheus metrics on /metrics.

Examples:
  # Stdio mode (default, for desktop assistants)
  lectern mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  lectern mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "lectern": {
        "command": "/path/to/lectern",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	if err := requireQuery(); err != nil {
		return err
	}

	ports := &mcp.Ports{
		Query:    queryService,
		Response: responseService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
