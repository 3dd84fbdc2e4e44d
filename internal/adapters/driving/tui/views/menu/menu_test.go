package menu

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/styles"
)

func TestNewView(t *testing.T) {
	view := NewView(styles.DefaultStyles())

	require.NotNil(t, view)
	assert.Len(t, view.Items(), 5)
	assert.Equal(t, 0, view.Selected())
	assert.Nil(t, view.Init())
}

func TestNewView_NilStyles(t *testing.T) {
	view := NewView(nil)

	assert.NotNil(t, view.styles)
}

func TestView_Update_WindowSize(t *testing.T) {
	view := NewView(nil)

	updated, cmd := view.Update(tea.WindowSizeMsg{Width: 100, Height: 50})

	assert.Equal(t, view, updated)
	assert.Nil(t, cmd)
	assert.True(t, view.ready)
	assert.Equal(t, 100, view.width)
}

func TestView_Navigate(t *testing.T) {
	view := NewView(nil)

	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, view.Selected())

	for i := 0; i < 10; i++ {
		view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	}
	assert.Equal(t, 4, view.Selected())

	view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 3, view.Selected())
}

func TestView_SelectChangesView(t *testing.T) {
	tests := []struct {
		name  string
		moves int
		want  messages.ViewType
	}{
		{"ask", 0, messages.ViewAsk},
		{"library", 1, messages.ViewLibrary},
		{"settings", 2, messages.ViewSettings},
		{"help", 3, messages.ViewHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := NewView(nil)
			for i := 0; i < tt.moves; i++ {
				view.Update(tea.KeyMsg{Type: tea.KeyDown})
			}

			_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

			require.NotNil(t, cmd)
			assert.Equal(t, messages.ViewChanged{View: tt.want}, cmd())
		})
	}
}

func TestView_SelectQuit(t *testing.T) {
	view := NewView(nil)
	for i := 0; i < 4; i++ {
		view.Update(tea.KeyMsg{Type: tea.KeyDown})
	}

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_QKeyQuits(t *testing.T) {
	view := NewView(nil)

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_View(t *testing.T) {
	view := NewView(nil)
	assert.Equal(t, "Initialising...", view.View())

	view.SetDimensions(80, 24)
	rendered := view.View()

	assert.Contains(t, rendered, "Lectern")
	assert.Contains(t, rendered, "> ")
	assert.Contains(t, rendered, "Ask a question")
	assert.Contains(t, rendered, "Library")
	assert.Contains(t, rendered, "Quit")
}

func TestView_DigitJumps(t *testing.T) {
	view := NewView(nil)

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})

	require.NotNil(t, cmd)
	assert.Equal(t, 1, view.Selected())
	assert.Equal(t, messages.ViewChanged{View: messages.ViewLibrary}, cmd())

	_, cmd = view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, view.Selected())
}

func TestView_HintsNeedWidth(t *testing.T) {
	view := NewView(nil)

	view.SetDimensions(100, 24)
	assert.Contains(t, view.View(), "cited answers from your books")

	view.SetDimensions(40, 24)
	assert.NotContains(t, view.View(), "cited answers from your books")
}
