package memory

import (
	"context"
	"sync"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Ensure FeedbackStore implements the interface.
var _ driven.FeedbackStore = (*FeedbackStore)(nil)

// FeedbackStore is an in-memory implementation of driven.FeedbackStore.
type FeedbackStore struct {
	mu      sync.RWMutex
	records map[string][]domain.FeedbackRecord
	weights map[string]domain.DocumentWeight
}

// NewFeedbackStore creates a new in-memory feedback store.
func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		records: make(map[string][]domain.FeedbackRecord),
		weights: make(map[string]domain.DocumentWeight),
	}
}

// AppendFeedback stores an immutable feedback record.
func (s *FeedbackStore) AppendFeedback(_ context.Context, rec domain.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.AnswerID] = append(s.records[rec.AnswerID], rec)
	return nil
}

// ListFeedback returns records for an answer, oldest first.
func (s *FeedbackStore) ListFeedback(_ context.Context, answerID string) ([]domain.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.records[answerID]
	out := make([]domain.FeedbackRecord, len(records))
	copy(out, records)
	return out, nil
}

// GetWeight returns the weight for a document.
func (s *FeedbackStore) GetWeight(_ context.Context, documentID string) (*domain.DocumentWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.weights[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &w, nil
}

// SaveWeight stores or updates a document weight.
func (s *FeedbackStore) SaveWeight(_ context.Context, w domain.DocumentWeight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[w.DocumentID] = w
	return nil
}
