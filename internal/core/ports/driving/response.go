package driving

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// ResponseService turns a query result into a grounded, cited answer.
type ResponseService interface {
	// Generate produces the complete answer in one call.
	Generate(ctx context.Context, result *domain.QueryResult) (*domain.AIResponse, error)

	// Stream produces the answer incrementally.
	Stream(ctx context.Context, result *domain.QueryResult) (AnswerStream, error)
}

// AnswerStream delivers an answer fragment by fragment.
//
// Next returns io.EOF once the answer is complete. Response is available
// after Next has returned io.EOF or an error; citations are derived only
// then. Close abandons the stream and releases its connection.
type AnswerStream interface {
	Next() (string, error)
	Response() (*domain.AIResponse, error)
	Close() error
}
