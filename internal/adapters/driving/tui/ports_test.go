package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	ProcessQueryFunc func(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error)
	BooksFunc        func(ctx context.Context) ([]domain.BookSummary, error)
	StatsResult      domain.Stats
}

func (m *MockQueryService) ProcessQuery(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if m.ProcessQueryFunc != nil {
		return m.ProcessQueryFunc(ctx, query, opts)
	}
	return &domain.QueryResult{Query: query}, nil
}

func (m *MockQueryService) Stats(context.Context) (domain.Stats, error) {
	return m.StatsResult, nil
}

func (m *MockQueryService) Books(ctx context.Context) ([]domain.BookSummary, error) {
	if m.BooksFunc != nil {
		return m.BooksFunc(ctx)
	}
	return nil, nil
}

// MockResponseService implements driving.ResponseService for testing.
type MockResponseService struct {
	GenerateFunc func(ctx context.Context, result *domain.QueryResult) (*domain.AIResponse, error)
}

func (m *MockResponseService) Generate(ctx context.Context, result *domain.QueryResult) (*domain.AIResponse, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, result)
	}
	return &domain.AIResponse{}, nil
}

func (m *MockResponseService) Stream(context.Context, *domain.QueryResult) (driving.AnswerStream, error) {
	return nil, errors.New("streaming not supported in tests")
}

func TestNewPorts(t *testing.T) {
	q := &MockQueryService{}
	r := &MockResponseService{}

	ports := NewPorts(q, r)

	assert.Equal(t, q, ports.Query)
	assert.Equal(t, r, ports.Response)
	assert.Nil(t, ports.Settings)
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ports *Ports
		want  error
	}{
		{"nil ports", nil, ErrInvalidPorts},
		{"missing query", &Ports{Response: &MockResponseService{}}, ErrMissingQueryService},
		{"query only", &Ports{Query: &MockQueryService{}}, nil},
		{"all", NewPorts(&MockQueryService{}, &MockResponseService{}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
