package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	resultCachePrefix = "schedule:result:"
	defaultResultTTL  = 24 * time.Hour
)

// Sealer encrypts cache entries. additional is the entry's key.
type Sealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(sealed, additional []byte) ([]byte, error)
}

// ResultCache keeps generation results in Redis for a bounded time.
type ResultCache struct {
	client *Client
	ttl    time.Duration
	sealer Sealer
}

// NewResultCache creates a new result cache
func NewResultCache(client *Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{client: client, ttl: ttl}
}

// WithSealer stores entries encrypted.
func (c *ResultCache) WithSealer(s Sealer) *ResultCache {
	c.sealer = s
	return c
}

func resultKey(runID uuid.UUID) string {
	return resultCachePrefix + runID.String()
}

// Get returns nil, nil on a cache miss.
func (c *ResultCache) Get(ctx context.Context, runID uuid.UUID) (*domain.GenerationResult, error) {
	key := resultKey(runID)
	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached result: %w", err)
	}
	if c.sealer != nil {
		if data, err = c.sealer.Open(data, []byte(key)); err != nil {
			return nil, fmt.Errorf("failed to open cached result: %w", err)
		}
	}

	var result domain.GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Set caches a result under its run id
func (c *ResultCache) Set(ctx context.Context, result *domain.GenerationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	key := resultKey(result.RunID)
	if c.sealer != nil {
		if data, err = c.sealer.Seal(data, []byte(key)); err != nil {
			return fmt.Errorf("failed to seal result: %w", err)
		}
	}
	return c.client.rdb.Set(ctx, key, data, c.ttl).Err()
}
