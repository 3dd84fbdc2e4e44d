package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driven/llm/llmstream"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL, Model: "gpt-test"})
	require.NoError(t, err)
	return svc
}

func readAll(t *testing.T, stream driven.FragmentStream) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		f, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(f)
	}
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Be brief.", req.Messages[0].Content)
		assert.Equal(t, "What is virtue?", req.Messages[1].Content)
		assert.Equal(t, 100, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Knowledge [1]."}}]}`))
	})

	answer, err := svc.Generate(context.Background(), "What is virtue?",
		driven.GenerateOptions{System: "Be brief.", MaxTokens: 100})

	require.NoError(t, err)
	assert.Equal(t, "Knowledge [1].", answer)
}

func TestGenerate_TransientStatus(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := svc.Generate(context.Background(), "q", driven.GenerateOptions{})

	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestStream(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			": keep-alive\n\n" +
				`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":"Knowledge"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":" [1]."}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n" +
				"data: [DONE]\n\n"))
	})

	stream, err := svc.Stream(context.Background(), "q", driven.GenerateOptions{})
	require.NoError(t, err)
	defer stream.Close()

	text, err := readAll(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Knowledge [1].", text)
}

func TestStream_CutShort(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"Know"}}]}` + "\n\n"))
	})

	stream, err := svc.Stream(context.Background(), "q", driven.GenerateOptions{})
	require.NoError(t, err)
	defer stream.Close()

	text, err := readAll(t, stream)
	assert.Equal(t, "Know", text)
	assert.ErrorIs(t, err, llmstream.ErrIncomplete)
}

func TestStream_OpenFailure(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := svc.Stream(context.Background(), "q", driven.GenerateOptions{})

	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "bad key")
}
