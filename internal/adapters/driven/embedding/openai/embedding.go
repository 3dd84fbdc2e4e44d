// Package openai embeds passages through an OpenAI compatible
// /embeddings endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/lectern/internal/adapters/driven/aierr"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const providerName = "openai"

// Defaults applied to an empty Config field.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// knownDimensions lists the vector sizes of hosted models. Other models
// report zero until the first response arrives.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config selects the endpoint and model. APIKey is required; BaseURL may
// point at Azure or any compatible server.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// EmbeddingService is safe for concurrent use.
type EmbeddingService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dims    atomic.Int64
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewEmbeddingService validates cfg and fills in defaults.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	s := &EmbeddingService{
		client:  &http.Client{Timeout: orDuration(cfg.Timeout, DefaultTimeout)},
		baseURL: orString(cfg.BaseURL, DefaultBaseURL),
		apiKey:  cfg.APIKey,
		model:   orString(cfg.Model, DefaultModel),
	}
	s.dims.Store(int64(knownDimensions[s.model]))
	return s, nil
}

// Embed returns the vector for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. The result is in input order
// whatever order the server answers in.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload, err := json.Marshal(embeddingRequest{Model: s.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := s.call(ctx, http.MethodPost, "/embeddings", payload)
	if err != nil {
		return nil, err
	}

	var out embeddingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("openai: %s", out.Error.Message)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai: %d embeddings for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("openai: invalid embedding index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	s.dims.CompareAndSwap(0, int64(len(vectors[0])))
	return vectors, nil
}

// Dimensions returns the vector size, or zero while unknown.
func (s *EmbeddingService) Dimensions() int { return int(s.dims.Load()) }

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.call(ctx, http.MethodGet, "/models", nil)
	return err
}

// Close is a no-op; the HTTP client owns no resources to release.
func (s *EmbeddingService) Close() error { return nil }

// call sends an authenticated request and returns the body of a 200
// response. Other statuses and transport failures are classified by aierr.
func (s *EmbeddingService) call(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, aierr.Transport(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, aierr.Transport(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, aierr.Status(providerName, resp.StatusCode, body)
	}
	return body, nil
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
