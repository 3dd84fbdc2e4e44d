// Package redis provides an embedding cache backed by Redis.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// keyPrefix namespaces cache entries.
const keyPrefix = "lectern:emb:"

const (
	pingTimeout  = 5 * time.Second
	dialTimeout  = 2 * time.Second
	ioTimeout    = time.Second
	poolSize     = 10
	minIdleConns = 1
)

// Cache stores embeddings as little-endian float32 blobs.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis and verifies the connection. A zero TTL keeps
// entries until evicted.
func New(cfg domain.CacheSettings) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}

	return &Cache{rdb: rdb, ttl: cfg.TTL}, nil
}

// Get returns the cached vector for key.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	val, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	vector, err := decodeVector(val)
	if err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

// Set stores a vector under key.
func (c *Cache) Set(ctx context.Context, key string, vector []float32) error {
	if err := c.rdb.Set(ctx, keyPrefix+key, encodeVector(vector), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("redis: corrupt vector of %d bytes", len(buf))
	}
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vector, nil
}
