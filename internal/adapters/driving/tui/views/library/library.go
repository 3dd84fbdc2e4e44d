// Package library provides the view listing ingested books.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// ErrNoQueryService indicates that no query service was provided.
var ErrNoQueryService = errors.New("query service not available")

// View lists the books in the retrieval store with library counts.
type View struct {
	styles       *styles.Styles
	statusbar    *status.Bar
	queryService driving.QueryService
	ctx          context.Context

	books    []domain.BookSummary
	stats    domain.Stats
	selected int
	loading  bool
	err      error

	width  int
	height int
	ready  bool
}

// NewView creates a new library view.
func NewView(s *styles.Styles, queryService driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	bar := status.NewBar(s, nil)
	bar.SetState(status.StateLibrary)
	return &View{
		styles:       s,
		statusbar:    bar,
		queryService: queryService,
		ctx:          context.Background(),
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the books.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadLibrary()
}

func (v *View) loadLibrary() tea.Cmd {
	return func() tea.Msg {
		if v.queryService == nil {
			return messages.LibraryLoaded{Err: ErrNoQueryService}
		}
		books, err := v.queryService.Books(v.ctx)
		if err != nil {
			return messages.LibraryLoaded{Err: err}
		}
		stats, err := v.queryService.Stats(v.ctx)
		return messages.LibraryLoaded{Books: books, Stats: stats, Err: err}
	}
}

// Update handles messages for the library view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.LibraryLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			v.statusbar.SetState(status.StateError)
			v.statusbar.SetMessage(msg.Err.Error())
			return v, nil
		}
		v.err = nil
		v.books = msg.Books
		v.stats = msg.Stats
		if v.selected >= len(v.books) {
			v.selected = 0
		}
		v.statusbar.SetState(status.StateLibrary)
		v.statusbar.SetMessage(fmt.Sprintf("%d books", len(v.books)))
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return v, func() tea.Msg {
				return messages.ViewChanged{View: messages.ViewMenu}
			}
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(v.books)-1 {
				v.selected++
			}
		case "r":
			return v, v.Init()
		}
	}
	return v, nil
}

// View renders the library.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Library"))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	case len(v.books) == 0:
		b.WriteString(v.styles.Muted.Render("No books ingested. Run 'lectern ingest <dir>' first."))
		b.WriteString("\n")
	default:
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("%d chunks from %d books by %d authors",
			v.stats.TotalChunks, v.stats.UniqueBooks, v.stats.UniqueAuthors)))
		b.WriteString("\n\n")
		start, end := v.window()
		for i := start; i < end; i++ {
			book := v.books[i]
			line := fmt.Sprintf("%s by %s (%d chunks)", book.Title, book.Author, book.Chunks)
			if i == v.selected {
				b.WriteString(v.styles.Selected.Render("> " + line))
			} else {
				b.WriteString(v.styles.Normal.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.statusbar.View())
	return b.String()
}

func (v *View) window() (int, int) {
	visible := v.height - 8
	if visible < 3 {
		visible = 3
	}
	start := 0
	if v.selected >= visible {
		start = v.selected - visible + 1
	}
	end := start + visible
	if end > len(v.books) {
		end = len(v.books)
	}
	return start, end
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.statusbar.SetWidth(width)
}

// Books returns the loaded books.
func (v *View) Books() []domain.BookSummary {
	return v.books
}

// Selected returns the index of the highlighted book.
func (v *View) Selected() int {
	return v.selected
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
