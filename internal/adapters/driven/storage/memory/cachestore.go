package memory

import (
	"context"
	"sync"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Ensure EmbeddingCacheStore implements the interface.
var _ driven.EmbeddingCacheStore = (*EmbeddingCacheStore)(nil)

// EmbeddingCacheStore is an in-memory implementation of
// driven.EmbeddingCacheStore.
type EmbeddingCacheStore struct {
	mu      sync.RWMutex
	entries map[string][]float32
}

// NewEmbeddingCacheStore creates a new in-memory embedding cache store.
func NewEmbeddingCacheStore() *EmbeddingCacheStore {
	return &EmbeddingCacheStore{
		entries: make(map[string][]float32),
	}
}

// GetEmbedding retrieves a cached embedding by key.
func (s *EmbeddingCacheStore) GetEmbedding(_ context.Context, key string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// PutEmbedding stores an embedding under a key.
func (s *EmbeddingCacheStore) PutEmbedding(_ context.Context, key string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	s.entries[key] = vec
	return nil
}
