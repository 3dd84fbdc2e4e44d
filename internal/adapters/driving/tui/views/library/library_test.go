package library

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lectern/internal/core/domain"
)

type stubQuery struct {
	books    []domain.BookSummary
	stats    domain.Stats
	booksErr error
	statsErr error
	calls    int
}

func (s *stubQuery) ProcessQuery(context.Context, string, domain.QueryOptions) (*domain.QueryResult, error) {
	return nil, errors.New("not used")
}

func (s *stubQuery) Stats(context.Context) (domain.Stats, error) { return s.stats, s.statsErr }

func (s *stubQuery) Books(context.Context) ([]domain.BookSummary, error) {
	s.calls++
	return s.books, s.booksErr
}

func twoBooks() *stubQuery {
	return &stubQuery{
		books: []domain.BookSummary{
			{BookID: "bk_med", Title: "Meditations", Author: "Marcus Aurelius", Chunks: 42},
			{BookID: "bk_wal", Title: "Walden", Author: "Henry David Thoreau", Chunks: 17},
		},
		stats: domain.Stats{TotalChunks: 59, UniqueBooks: 2, UniqueAuthors: 2},
	}
}

func loaded(t *testing.T, q *stubQuery) *View {
	t.Helper()
	v := NewView(nil, q)
	v.SetDimensions(100, 30)
	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
	return v
}

func TestView_ListsBooks(t *testing.T) {
	v := loaded(t, twoBooks())

	view := v.View()

	require.NoError(t, v.Err())
	assert.Len(t, v.Books(), 2)
	assert.Contains(t, view, "Library")
	assert.Contains(t, view, "59 chunks from 2 books by 2 authors")
	assert.Contains(t, view, "> Meditations by Marcus Aurelius (42 chunks)")
	assert.Contains(t, view, "Walden by Henry David Thoreau (17 chunks)")
	assert.Contains(t, view, "2 books")
}

func TestView_Empty(t *testing.T) {
	v := loaded(t, &stubQuery{})

	assert.Contains(t, v.View(), "No books ingested")
}

func TestView_LoadErrors(t *testing.T) {
	storeErr := &domain.StoreUnavailableError{Backend: "sqlite", Op: "books", Err: errors.New("locked")}

	t.Run("books", func(t *testing.T) {
		v := loaded(t, &stubQuery{booksErr: storeErr})

		assert.ErrorIs(t, v.Err(), domain.ErrStoreUnavailable)
		assert.Contains(t, v.View(), "Error:")
	})

	t.Run("stats", func(t *testing.T) {
		q := twoBooks()
		q.statsErr = storeErr
		v := loaded(t, q)

		assert.ErrorIs(t, v.Err(), domain.ErrStoreUnavailable)
	})

	t.Run("no service", func(t *testing.T) {
		v := NewView(nil, nil)
		v.Update(v.Init()())

		assert.ErrorIs(t, v.Err(), ErrNoQueryService)
	})
}

func TestView_Navigation(t *testing.T) {
	v := loaded(t, twoBooks())

	v.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, v.Selected())
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, v.Selected())
	assert.Contains(t, v.View(), "> Walden")
}

func TestView_Refresh(t *testing.T) {
	q := twoBooks()
	v := loaded(t, q)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	assert.Contains(t, v.View(), "Loading...")

	v.Update(cmd())
	assert.Equal(t, 2, q.calls)
	assert.NotContains(t, v.View(), "Loading...")
}

func TestView_EscGoesToMenu(t *testing.T) {
	v := loaded(t, twoBooks())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_NotReady(t *testing.T) {
	assert.Equal(t, "Initialising...", NewView(nil, nil).View())
}
