package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

func writeBook(t *testing.T, name, content string) domain.Book {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return domain.NewBook(path)
}

func TestExtractor_Metadata(t *testing.T) {
	e := New()
	assert.Equal(t, "plaintext", e.Name())
	assert.Equal(t, []string{".txt", ".text"}, e.Extensions())
}

func TestExtract_TripleNewlinePages(t *testing.T) {
	book := writeBook(t, "Walden - Thoreau.txt", "first page\n\n\nsecond page\r\n\r\n\r\nthird page")

	pages, err := New().Extract(context.Background(), book)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
		assert.Equal(t, book.ID, p.BookID)
	}
	assert.Equal(t, "second page", pages[1].Text)
}

func TestExtract_FormFeedPages(t *testing.T) {
	book := writeBook(t, "ff.txt", "one\ftwo")

	pages, err := New().Extract(context.Background(), book)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "two", pages[1].Text)
}

func TestExtract_BlankPagesKeepNumbering(t *testing.T) {
	book := writeBook(t, "gaps.txt", "one\n\n\n   \n\n\nthree")

	pages, err := New().Extract(context.Background(), book)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, 3, pages[1].PageNumber)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), domain.NewBook("/does/not/exist.txt"))
	assert.Error(t, err)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	book := writeBook(t, "bin.txt", "\xff\xfe\xfd")

	_, err := New().Extract(context.Background(), book)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPaginate_SplitsAtWordBoundaries(t *testing.T) {
	text := strings.Repeat("word ", 1000) // 5000 chars, no page breaks

	pages := Paginate("bk", text, 2000)

	require.Len(t, pages, 3)
	var words int
	for _, p := range pages {
		assert.LessOrEqual(t, len([]rune(p.Text)), 2000)
		for _, w := range strings.Fields(p.Text) {
			assert.Equal(t, "word", w, "a word was split across pages")
		}
		words += len(strings.Fields(p.Text))
	}
	assert.Equal(t, 1000, words)
}

func TestPaginate_LongWord(t *testing.T) {
	long := strings.Repeat("x", 30)

	pages := Paginate("bk", "ab "+long+" cd", 10)

	var got []string
	for _, p := range pages {
		got = append(got, strings.Fields(p.Text)...)
	}
	assert.Equal(t, []string{"ab", long, "cd"}, got)
}

func TestPaginate_Empty(t *testing.T) {
	assert.Empty(t, Paginate("bk", "", 2000))
	assert.Empty(t, Paginate("bk", " \n\t ", 2000))
}
