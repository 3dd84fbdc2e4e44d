package mcp

import (
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query retrieves passages, statistics and the book listing.
	Query driving.QueryService

	// Response generates cited answers. Optional; without it the ask
	// tool reports ErrAnswersDisabled.
	Response driving.ResponseService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
