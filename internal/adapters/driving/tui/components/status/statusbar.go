// Package status renders the one-line bar at the bottom of the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/styles"
)

// State selects the bar's text and key hints.
type State string

const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateAnswering State = "answering"
	StateError     State = "error"
	StateResults   State = "results"
	StateLibrary   State = "library"
)

// Bar shows what the view is doing on the left and key hints on the
// right. It is driven through its setters.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	state   State
	message string
	count   int
	width   int
}

// NewBar creates a bar in the ready state. Nil arguments use defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	h := help.New()
	h.ShortSeparator = " | "
	h.Styles.ShortKey = s.Muted
	h.Styles.ShortDesc = s.Muted
	h.Styles.ShortSeparator = s.Muted

	return &Bar{styles: s, keymap: km, help: h, state: StateReady, width: 80}
}

// Init implements the bubbletea model contract.
func (s *Bar) Init() tea.Cmd { return nil }

// Update is a no-op; the owning view sets the state.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) { return s, nil }

// View renders the bar padded to its width.
func (s *Bar) View() string {
	left := s.status()
	right := s.help.ShortHelpView(s.bindings())

	gap := max(s.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *Bar) status() string {
	switch s.state {
	case StateSearching:
		return s.styles.Muted.Render("Searching the library...")
	case StateAnswering:
		return s.styles.Muted.Render(fmt.Sprintf("Answering from %d sources...", s.count))
	case StateError:
		if s.message == "" {
			return s.styles.Error.Render("Error")
		}
		return s.styles.Error.Render("Error: " + s.message)
	case StateResults, StateLibrary:
		switch {
		case s.message != "":
			return s.styles.Normal.Render(s.message)
		case s.count > 0:
			return s.styles.Normal.Render(fmt.Sprintf("%d sources", s.count))
		}
		return s.styles.Muted.Render("No sources")
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) bindings() []key.Binding {
	switch s.state {
	case StateResults:
		return s.keymap.AnswerHelp()
	case StateLibrary:
		return s.keymap.LibraryHelp()
	}
	return s.keymap.ShortHelp()
}

// SetState changes the state.
func (s *Bar) SetState(state State) { s.state = state }

// State returns the state.
func (s *Bar) State() State { return s.state }

// SetMessage overrides the default text of the results, library and
// error states.
func (s *Bar) SetMessage(message string) { s.message = message }

// Message returns the override text.
func (s *Bar) Message() string { return s.message }

// SetResultCount records how many sources were retrieved.
func (s *Bar) SetResultCount(count int) { s.count = count }

// ResultCount returns the recorded source count.
func (s *Bar) ResultCount() int { return s.count }

// SetWidth sets the rendered width.
func (s *Bar) SetWidth(width int) {
	s.width = width
	s.help.Width = width / 2
}

// Width returns the rendered width.
func (s *Bar) Width() int { return s.width }

// Clear returns to the ready state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.count = 0
}
