// Package repl implements the interactive question loop. Each input line
// is parsed once into a Command and then dispatched by type.
package repl

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// Command is one parsed line of input.
type Command interface {
	command()
}

// Filters narrows a question to one book or one author.
type Filters struct {
	Book   string
	Author string
}

// Options converts the filters into query options.
func (f Filters) Options() domain.QueryOptions {
	return domain.QueryOptions{Book: f.Book, Author: f.Author}
}

// Ask answers a question in one piece.
type Ask struct {
	Query   string
	Filters Filters
}

// Stream answers a question fragment by fragment.
type Stream struct {
	Query   string
	Filters Filters
}

// Sources lists the retrieved passages without generating an answer.
type Sources struct {
	Query   string
	Filters Filters
}

// Stats prints library counts.
type Stats struct{}

// Books lists the ingested books.
type Books struct{}

// Help prints the command reference.
type Help struct{}

// Quit ends the session.
type Quit struct{}

func (Ask) command()     {}
func (Stream) command()  {}
func (Sources) command() {}
func (Stats) command()   {}
func (Books) command()   {}
func (Help) command()    {}
func (Quit) command()    {}

const (
	streamPrefix  = "stream "
	sourcesPrefix = "sources "
	bookPrefix    = "book:"
	authorPrefix  = "author:"
	filterSep     = " - "
)

var formats = map[string]string{
	bookPrefix:   "book:<title> - <question>",
	authorPrefix: "author:<name> - <question>",
}

// Parse turns a line of input into a Command. Blank input and a bare
// mode keyword return domain.ErrEmptyQuery; a filter prefix without a
// question returns domain.ErrInvalidInput with the expected format.
func Parse(line string) (Command, error) {
	input := strings.TrimSpace(line)
	lower := strings.ToLower(input)

	switch lower {
	case "":
		return nil, domain.ErrEmptyQuery
	case "quit", "exit", "q":
		return Quit{}, nil
	case "help", "?":
		return Help{}, nil
	case "stats":
		return Stats{}, nil
	case "books":
		return Books{}, nil
	case strings.TrimSpace(streamPrefix), strings.TrimSpace(sourcesPrefix):
		return nil, domain.ErrEmptyQuery
	}

	switch {
	case strings.HasPrefix(lower, streamPrefix):
		query, filters, err := parseQuestion(input[len(streamPrefix):])
		if err != nil {
			return nil, err
		}
		return Stream{Query: query, Filters: filters}, nil
	case strings.HasPrefix(lower, sourcesPrefix):
		query, filters, err := parseQuestion(input[len(sourcesPrefix):])
		if err != nil {
			return nil, err
		}
		return Sources{Query: query, Filters: filters}, nil
	}

	query, filters, err := parseQuestion(input)
	if err != nil {
		return nil, err
	}
	return Ask{Query: query, Filters: filters}, nil
}

// parseQuestion splits an optional book: or author: prefix from the
// question.
func parseQuestion(input string) (string, Filters, error) {
	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)

	var prefix string
	switch {
	case strings.HasPrefix(lower, bookPrefix):
		prefix = bookPrefix
	case strings.HasPrefix(lower, authorPrefix):
		prefix = authorPrefix
	default:
		if input == "" {
			return "", Filters{}, domain.ErrEmptyQuery
		}
		return input, Filters{}, nil
	}

	// input is trimmed, so a trailing separator has lost its space
	name, query, found := strings.Cut(input[len(prefix):]+" ", filterSep)
	name = strings.TrimSpace(name)
	query = strings.TrimSpace(query)
	if !found || name == "" {
		return "", Filters{}, fmt.Errorf("%w: format is %s", domain.ErrInvalidInput, formats[prefix])
	}
	if query == "" {
		return "", Filters{}, domain.ErrEmptyQuery
	}

	if prefix == bookPrefix {
		return query, Filters{Book: name}, nil
	}
	return query, Filters{Author: name}, nil
}
