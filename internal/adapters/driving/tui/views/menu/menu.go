// Package menu is the start screen of the TUI.
package menu

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/styles"
)

// Item is one menu entry. An entry without a view quits.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

var defaultItems = []Item{
	{Label: "Ask a question", Hint: "cited answers from your books", View: messages.ViewAsk},
	{Label: "Library", Hint: "ingested books and counts", View: messages.ViewLibrary},
	{Label: "Settings", Hint: "models, store and retrieval", View: messages.ViewSettings},
	{Label: "Help", Hint: "keys and question syntax", View: messages.ViewHelp},
	{Label: "Quit", Quit: true},
}

// View lists the entries. Digits 1-9 jump straight to an entry.
type View struct {
	styles *styles.Styles
	keys   *keymap.KeyMap
	items  []Item
	cursor int
	width  int
	height int
	ready  bool
}

// NewView creates the menu.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		keys:   keymap.DefaultKeyMap(),
		items:  append([]Item(nil), defaultItems...),
		width:  80,
		height: 24,
	}
}

// Init implements the bubbletea model contract.
func (v *View) Init() tea.Cmd { return nil }

// Update moves the cursor or activates an entry.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v, v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keys.Up):
		v.cursor = max(v.cursor-1, 0)
	case key.Matches(msg, v.keys.Down):
		v.cursor = min(v.cursor+1, len(v.items)-1)
	case key.Matches(msg, v.keys.Select):
		return v.activate(v.cursor)
	case key.Matches(msg, v.keys.Quit):
		return tea.Quit
	default:
		if r := msg.Runes; len(r) == 1 && r[0] >= '1' && int(r[0]-'1') < len(v.items) {
			v.cursor = int(r[0] - '1')
			return v.activate(v.cursor)
		}
	}
	return nil
}

func (v *View) activate(i int) tea.Cmd {
	item := v.items[i]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Lectern"))
	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("Questions answered from your books"))
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%d. %s", i+1, item.Label)
		if i == v.cursor {
			b.WriteString("> " + v.styles.Subtitle.Render(label))
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		if item.Hint != "" && v.width >= 60 {
			b.WriteString("  " + v.styles.Muted.Render(item.Hint))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [1-5] Jump  [Enter] Select  [q] Quit"))
	return b.String()
}

// SetDimensions records the terminal size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Items returns the entries.
func (v *View) Items() []Item { return v.items }

// Selected returns the cursor position.
func (v *View) Selected() int { return v.cursor }
