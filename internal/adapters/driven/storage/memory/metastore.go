package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu      sync.RWMutex
	records map[string]domain.MetadataRecord
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		records: make(map[string]domain.MetadataRecord),
	}
}

// Append adds records for newly indexed vectors.
func (s *MetadataStore) Append(_ context.Context, records []domain.MetadataRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.ChunkID] = rec
	}
	return nil
}

// Count returns the number of records.
func (s *MetadataStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// ListAll returns every record in vector-offset order.
func (s *MetadataStore) ListAll(_ context.Context) ([]domain.MetadataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.MetadataRecord, 0, len(s.records))
	for id := range s.records {
		result = append(result, s.records[id])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VectorOffset < result[j].VectorOffset })
	return result, nil
}

// InvalidRecords returns chunk IDs of records missing required fields.
func (s *MetadataStore) InvalidRecords(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var invalid []string
	for id, rec := range s.records {
		if !rec.Valid() {
			invalid = append(invalid, id)
		}
	}
	sort.Strings(invalid)
	return invalid, nil
}

// DeleteByDocument removes all records for a document.
func (s *MetadataStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	return nil
}

// ReplaceAll atomically swaps the full record set.
func (s *MetadataStore) ReplaceAll(_ context.Context, records []domain.MetadataRecord) error {
	next := make(map[string]domain.MetadataRecord, len(records))
	for _, rec := range records {
		next[rec.ChunkID] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = next
	return nil
}
