package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/styles"
)

func TestNewQuestionInput(t *testing.T) {
	input := NewQuestionInput(styles.DefaultStyles())

	require.NotNil(t, input)
	assert.Equal(t, "", input.Value())
	assert.True(t, input.Focused())
}

func TestNewQuestionInput_NilStyles(t *testing.T) {
	input := NewQuestionInput(nil)

	require.NotNil(t, input)
	assert.NotNil(t, input.styles)
}

func TestQuestionInput_Init(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.NotNil(t, input.Init())
}

func TestQuestionInput_Update(t *testing.T) {
	input := NewQuestionInput(nil)

	updated, _ := input.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("why")})

	assert.Equal(t, input, updated)
	assert.Equal(t, "why", input.Value())
}

func TestQuestionInput_View(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.Contains(t, input.View(), "Ask")
}

func TestQuestionInput_SetValueAndReset(t *testing.T) {
	input := NewQuestionInput(nil)

	input.SetValue("what is virtue?")
	assert.Equal(t, "what is virtue?", input.Value())

	input.Reset()
	assert.Equal(t, "", input.Value())
}

func TestQuestionInput_FocusBlur(t *testing.T) {
	input := NewQuestionInput(nil)

	input.Blur()
	assert.False(t, input.Focused())

	input.Focus()
	assert.True(t, input.Focused())
}

func TestQuestionInput_SetWidth(t *testing.T) {
	tests := []struct {
		width     int
		wantInner int
	}{
		{100, 90},
		{25, 20},
	}

	for _, tt := range tests {
		input := NewQuestionInput(nil)
		input.SetWidth(tt.width)

		assert.Equal(t, tt.width, input.Width())
		assert.Equal(t, tt.wantInner, input.textinput.Width)
	}
}

func TestQuestionInput_CharLimit(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.Equal(t, charLimit, input.textinput.CharLimit)
}
