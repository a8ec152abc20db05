package driven

import "context"

// EmbeddingProvider turns text into vectors. The model itself is
// external; implementations wrap a remote API or a caching layer.
//
// Failures are mapped onto domain.ErrProviderUnavailable and
// domain.ErrProviderQuotaExceeded so that callers can degrade to
// lexical-only scoring instead of failing the request.
type EmbeddingProvider interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelVersion identifies the embedding model. Cache keys include
	// this value so switching models never serves stale vectors.
	ModelVersion() string

	// Close releases resources.
	Close() error
}

// EmbeddingCacheStore persists cached embeddings across restarts.
// Entries are purely derived data, safe to evict and regenerate.
type EmbeddingCacheStore interface {
	// GetEmbedding returns the cached vector for a key, or
	// domain.ErrNotFound.
	GetEmbedding(ctx context.Context, key string) ([]float32, error)

	// PutEmbedding stores a vector under a key.
	PutEmbedding(ctx context.Context, key string, vector []float32) error
}
