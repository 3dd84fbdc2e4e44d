package domain

import "fmt"

// InsufficientContextAnswer is returned without calling the language model
// when retrieval produced nothing to ground an answer on.
const InsufficientContextAnswer = "I could not find anything in the library that answers this question. " +
	"Try rephrasing it, removing filters, or lowering the score threshold."

// TruncationNotice is appended to answers cut short by a streaming failure.
const TruncationNotice = "[response truncated: the language model stopped before finishing]"

// Citation identifies the source of a passage.
type Citation struct {
	Title      string
	Author     string
	PageNumber int
}

// String formats the citation as "Title by Author, p.N".
func (c Citation) String() string {
	return fmt.Sprintf("%s by %s, p.%d", c.Title, c.Author, c.PageNumber)
}

// AIResponse is a grounded answer with the sources it relied on.
type AIResponse struct {
	// Answer is the generated text, trimmed.
	Answer string

	// Citations are unique sources in order of first appearance in the context.
	Citations []Citation

	// SourceCount is the number of chunks included in the context.
	SourceCount int

	// Insufficient is true when the fixed insufficient-context answer was returned.
	Insufficient bool

	// Truncated is true when a stream failed before completion.
	Truncated bool
}

// InsufficientContextResponse builds the fixed response for empty retrieval.
func InsufficientContextResponse() *AIResponse {
	return &AIResponse{
		Answer:       InsufficientContextAnswer,
		Citations:    []Citation{},
		Insufficient: true,
	}
}
