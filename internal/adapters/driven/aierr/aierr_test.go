package aierr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusNotImplemented, false},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := Status("openai", tt.status, []byte(`{"error":"boom"}`))
			assert.Equal(t, tt.transient, domain.IsTransient(err))
			assert.Contains(t, err.Error(), "openai")
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestStatus_TruncatesBody(t *testing.T) {
	err := Status("ollama", http.StatusBadRequest, []byte(strings.Repeat("x", 2000)))
	assert.Less(t, len(err.Error()), 600)
}

func TestTransport(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport("ollama", cause)
	assert.True(t, domain.IsTransient(err))
	assert.ErrorIs(t, err, cause)

	cancelled := Transport("ollama", context.Canceled)
	assert.False(t, domain.IsTransient(cancelled))
	assert.ErrorIs(t, cancelled, context.Canceled)
}
