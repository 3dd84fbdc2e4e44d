package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/logger"
	"github.com/custodia-labs/lectern/internal/metrics"
	"github.com/custodia-labs/lectern/internal/retry"
)

// Ensure EmbeddingGateway implements the interface.
var _ driven.EmbeddingService = (*EmbeddingGateway)(nil)

// EmbeddingGateway decorates a provider with batching, rate limiting,
// retries, caching and dimension checks. Every failure is returned as a
// *domain.EmbeddingError and no partial result is ever returned.
type EmbeddingGateway struct {
	provider  driven.EmbeddingService
	cache     driven.EmbeddingCache
	limiter   *rate.Limiter
	policy    retry.Policy
	batchSize int
	group     singleflight.Group

	mu   sync.Mutex
	dims int
}

// GatewayOption configures an EmbeddingGateway.
type GatewayOption func(*EmbeddingGateway)

// WithEmbeddingCache consults cache before calling the provider.
func WithEmbeddingCache(cache driven.EmbeddingCache) GatewayOption {
	return func(g *EmbeddingGateway) { g.cache = cache }
}

// WithEmbeddingRetry overrides the retry policy.
func WithEmbeddingRetry(p retry.Policy) GatewayOption {
	return func(g *EmbeddingGateway) { g.policy = p }
}

// NewEmbeddingGateway wraps provider using the batch size and rate limit
// from settings.
func NewEmbeddingGateway(
	provider driven.EmbeddingService, settings domain.EmbeddingSettings, opts ...GatewayOption,
) *EmbeddingGateway {
	g := &EmbeddingGateway{
		provider:  provider,
		policy:    retry.Embedding,
		batchSize: settings.BatchSize,
		dims:      provider.Dimensions(),
	}
	if g.batchSize <= 0 {
		g.batchSize = domain.DefaultEmbeddingBatchSize
	}
	if settings.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Embed returns the vector for one text. Concurrent requests for the same
// text share one provider call. The shared call is detached from the
// caller that started it, so one caller giving up does not fail the others;
// each caller still returns as soon as its own context is done.
func (g *EmbeddingGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := g.cacheKey(text)
	if vec, ok := g.cached(ctx, key); ok {
		return vec, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		vectors, err := g.callProvider(flightCtx, []string{text})
		if err != nil {
			return nil, err
		}
		g.store(flightCtx, key, vectors[0])
		return vectors[0], nil
	})

	select {
	case <-ctx.Done():
		return nil, wrapEmbedding("query", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, wrapEmbedding("query", res.Err)
		}
		return res.Val.([]float32), nil
	}
}

// EmbedBatch returns one vector per text in input order.
func (g *EmbeddingGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	keys := make([]string, len(texts))
	var missing []int
	for i, text := range texts {
		keys[i] = g.cacheKey(text)
		if vec, ok := g.cached(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	logger.Debug("embedding %d texts (%d cached) in batches of %d", len(texts), len(texts)-len(missing), g.batchSize)

	for start := 0; start < len(missing); start += g.batchSize {
		end := min(start+g.batchSize, len(missing))
		idx := missing[start:end]

		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vectors, err := g.callProvider(ctx, batch)
		if err != nil {
			return nil, wrapEmbedding("batch", err)
		}
		for j, i := range idx {
			out[i] = vectors[j]
			g.store(ctx, keys[i], vectors[j])
		}
	}
	return out, nil
}

// Dimensions returns the vector size, or zero before the first response
// when the provider does not report one.
func (g *EmbeddingGateway) Dimensions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dims
}

// ModelName returns the provider's model name.
func (g *EmbeddingGateway) ModelName() string {
	return g.provider.ModelName()
}

// Ping checks the provider.
func (g *EmbeddingGateway) Ping(ctx context.Context) error {
	if err := g.provider.Ping(ctx); err != nil {
		return wrapEmbedding("ping", err)
	}
	return nil
}

// Close releases the provider and cache.
func (g *EmbeddingGateway) Close() error {
	var cacheErr error
	if g.cache != nil {
		cacheErr = g.cache.Close()
	}
	if err := g.provider.Close(); err != nil {
		return err
	}
	return cacheErr
}

func (g *EmbeddingGateway) callProvider(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := retry.Do(ctx, g.policy, "embed", func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		vectors, err = g.provider.EmbedBatch(ctx, batch)
		return err
	})
	if err != nil {
		metrics.EmbeddingCallsTotal.WithLabelValues(g.provider.ModelName(), metrics.StatusError).Inc()
		return nil, err
	}
	metrics.EmbeddingCallsTotal.WithLabelValues(g.provider.ModelName(), metrics.StatusOK).Inc()

	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
	}
	for _, vec := range vectors {
		if err := g.checkDimensions(vec); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// checkDimensions fixes the dimension on the first vector when the
// provider did not report one, then requires every vector to match.
func (g *EmbeddingGateway) checkDimensions(vec []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(vec) == 0 {
		return fmt.Errorf("provider returned an empty vector")
	}
	if g.dims == 0 {
		g.dims = len(vec)
		logger.Debug("embedding dimension set to %d", g.dims)
	}
	if len(vec) != g.dims {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", g.dims, len(vec))
	}
	return nil
}

func (g *EmbeddingGateway) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return g.provider.ModelName() + ":" + hex.EncodeToString(sum[:])
}

func (g *EmbeddingGateway) cached(ctx context.Context, key string) ([]float32, bool) {
	if g.cache == nil {
		return nil, false
	}
	vec, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("embedding cache get: %v", err)
		return nil, false
	}
	if !ok || g.checkDimensions(vec) != nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	return vec, true
}

func (g *EmbeddingGateway) store(ctx context.Context, key string, vec []float32) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, vec); err != nil {
		logger.Warn("embedding cache set: %v", err)
	}
}

func wrapEmbedding(op string, err error) error {
	return &domain.EmbeddingError{Op: op, Err: err}
}
