package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// contextSeparator joins context entries.
const contextSeparator = "\n\n"

// FormatContextEntry renders one included chunk with its citation marker.
func FormatContextEntry(marker int, chunk *domain.TextChunk) string {
	return fmt.Sprintf("[%d] %s:\n%s", marker, chunk.Citation(), chunk.Text)
}

// AssembleContext packs ranked results into a context block of at most
// maxWords words, counting each entry's marker and header. Inclusion is
// greedy in rank order and stops at the first entry that does not fit, so
// the excluded results are exactly those past the cutoff.
func AssembleContext(results []domain.SearchResult, maxWords int) domain.AssembledContext {
	assembled := domain.AssembledContext{
		ChunkIDs: []string{},
		Sources:  []domain.Citation{},
	}

	entries := make([]string, 0, len(results))
	for i := range results {
		chunk := &results[i].Chunk
		entry := FormatContextEntry(len(entries)+1, chunk)
		words := len(strings.Fields(entry))

		if assembled.Words+words > maxWords {
			assembled.Truncated = true
			break
		}

		entries = append(entries, entry)
		assembled.Words += words
		assembled.ChunkIDs = append(assembled.ChunkIDs, chunk.ID)
		assembled.Sources = append(assembled.Sources, chunk.Citation())
	}

	assembled.Text = strings.Join(entries, contextSeparator)
	return assembled
}
