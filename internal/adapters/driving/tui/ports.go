// Package tui provides an interactive terminal user interface for lectern.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces used by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query retrieves passages and library statistics.
	Query driving.QueryService

	// Response generates cited answers. When nil the TUI shows passages only.
	Response driving.ResponseService

	// Settings edits stored settings. When nil the settings view is read-only.
	Settings driving.SettingsService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(query driving.QueryService, response driving.ResponseService) *Ports {
	return &Ports{
		Query:    query,
		Response: response,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
