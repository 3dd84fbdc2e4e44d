package qdrant

import (
	"strings"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// filter is a Qdrant payload filter.
type filter struct {
	Must []condition `json:"must,omitempty"`
}

type condition struct {
	Key   string     `json:"key"`
	Match *match     `json:"match,omitempty"`
	Range *rangeCond `json:"range,omitempty"`
}

type match struct {
	Value string   `json:"value,omitempty"`
	Any   []string `json:"any,omitempty"`
}

type rangeCond struct {
	Gte int `json:"gte"`
}

func bookFilter(bookID string) *filter {
	return &filter{Must: []condition{{Key: "book_id", Match: &match{Value: bookID}}}}
}

// searchFilter translates book and author filters. Title matching is
// substring based and stays on the client.
func searchFilter(f domain.SearchFilters) *filter {
	var out filter
	if len(f.BookIDs) > 0 {
		out.Must = append(out.Must, condition{Key: "book_id", Match: &match{Any: f.BookIDs}})
	}
	if len(f.Authors) > 0 {
		keys := make([]string, len(f.Authors))
		for i, a := range f.Authors {
			keys[i] = strings.ToLower(a)
		}
		out.Must = append(out.Must, condition{Key: "author_key", Match: &match{Any: keys}})
	}
	if len(out.Must) == 0 {
		return nil
	}
	return &out
}
