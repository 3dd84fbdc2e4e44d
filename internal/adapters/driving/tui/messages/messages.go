// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/lectern/internal/core/domain"
)

// SearchCompleted carries retrieved passages back to the model.
type SearchCompleted struct {
	Result *domain.QueryResult
	Err    error
}

// AnswerCompleted carries a generated answer back to the model.
type AnswerCompleted struct {
	Response *domain.AIResponse
	Err      error
}

// LibraryLoaded carries the ingested books and library counts.
type LibraryLoaded struct {
	Books []domain.BookSummary
	Stats domain.Stats
	Err   error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewAsk is the question input, answer and passages view.
	ViewAsk
	// ViewLibrary lists ingested books.
	ViewLibrary
	// ViewHelp is the help/keybindings view.
	ViewHelp
	// ViewSettings edits stored settings.
	ViewSettings
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewAsk:
		return "ask"
	case ViewLibrary:
		return "library"
	case ViewHelp:
		return "help"
	case ViewSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// SettingsLoaded carries the current settings.
type SettingsLoaded struct {
	Settings *domain.Settings
	Err      error
}

// SettingsSaved signals a setting was changed.
type SettingsSaved struct {
	Key string
	Err error
}
