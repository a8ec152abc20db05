// Package cache provides the embedding cache: a get-or-create layer
// in front of the external embedding provider keyed by content hash
// and model version.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// Ensure Cache implements the provider interface so services can use
// it transparently in place of the raw provider.
var _ driven.EmbeddingProvider = (*Cache)(nil)

// Cache is a two-tier embedding cache: an in-memory LRU in front of an
// optional persistent store. Misses call the underlying provider
// behind a rate limiter, a bounded-concurrency semaphore, a per-call
// timeout and a bounded exponential-backoff retry loop.
//
// Keys include the model version, so switching embedding models never
// serves stale vectors. Entries are derived data and safe to evict.
type Cache struct {
	provider driven.EmbeddingProvider
	store    driven.EmbeddingCacheStore

	hot     *lru.Cache[string, []float32]
	limiter *rate.Limiter
	sem     *semaphore.Weighted

	timeout    time.Duration
	maxRetries uint64
}

// New creates the cache around a provider. The persistent store may be
// nil; the cache then lives only in memory.
func New(provider driven.EmbeddingProvider, store driven.EmbeddingCacheStore, cfg domain.ProviderConfig) (*Cache, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding cache: provider is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	// Bound the budget before the uint64 conversion below; a negative
	// value would otherwise wrap to an effectively unlimited loop.
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	hot, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	return &Cache{
		provider:   provider,
		store:      store,
		hot:        hot,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxConcurrent),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		timeout:    cfg.Timeout,
		maxRetries: uint64(cfg.MaxRetries),
	}, nil
}

// Key returns the cache key for a text under a model version.
func Key(modelVersion, text string) string {
	h := sha256.New()
	h.Write([]byte(modelVersion))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns the cached vector for the text, generating and storing
// it on a miss. Cache hits involve no I/O beyond the persistent-store
// lookup.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.provider.ModelVersion(), text)

	if vec, ok := c.hot.Get(key); ok {
		return cloneVector(vec), nil
	}

	if c.store != nil {
		vec, err := c.store.GetEmbedding(ctx, key)
		if err == nil {
			c.hot.Add(key, vec)
			return cloneVector(vec), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
	}

	vec, err := c.generate(ctx, text)
	if err != nil {
		return nil, err
	}

	c.hot.Add(key, vec)
	if c.store != nil {
		// Persistence is best-effort: the entry can be regenerated.
		if err := c.store.PutEmbedding(ctx, key, vec); err != nil {
			logger.Warn("Failed to persist cached embedding: %v", err)
		}
	}

	return cloneVector(vec), nil
}

// generate calls the provider with rate limiting, bounded concurrency,
// a per-call timeout and retries. Quota and availability errors are
// retried until the budget runs out, then surfaced for the caller to
// degrade on.
func (c *Cache) generate(ctx context.Context, text string) ([]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	var vec []float32
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		result, err := c.provider.Embed(callCtx, text)
		if err != nil {
			if errors.Is(err, domain.ErrProviderUnavailable) ||
				errors.Is(err, domain.ErrProviderQuotaExceeded) ||
				errors.Is(err, context.DeadlineExceeded) {
				return err // Retryable
			}
			return backoff.Permanent(err)
		}
		vec = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("embed after retries: %w", err)
	}
	return vec, nil
}

// Dimensions returns the embedding vector size of the provider.
func (c *Cache) Dimensions() int {
	return c.provider.Dimensions()
}

// ModelVersion identifies the underlying embedding model.
func (c *Cache) ModelVersion() string {
	return c.provider.ModelVersion()
}

// Close releases the underlying provider.
func (c *Cache) Close() error {
	return c.provider.Close()
}

// cloneVector copies a vector so callers can't mutate cached entries.
func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
