// Package mcp provides an MCP (Model Context Protocol) server adapter for lectern.
// It lets AI assistants search the book library and ask grounded questions.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrAnswersDisabled is returned by the ask tool when no response service is configured.
var ErrAnswersDisabled = errors.New("mcp: answering requires a configured language model")
