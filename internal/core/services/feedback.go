package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// FeedbackService records per-answer user ratings and maintains a
// bounded per-document weight. Each call is additive by design:
// repeated identical feedback compounds. Weight updates for the same
// document are serialised through a per-key lock so concurrent ratings
// never lose updates.
type FeedbackService struct {
	store driven.FeedbackStore
	cfg   domain.FeedbackConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFeedbackService creates the tracker.
func NewFeedbackService(store driven.FeedbackStore, cfg domain.FeedbackConfig) *FeedbackService {
	if cfg.RatingDeltas == nil {
		cfg = domain.DefaultConfig().Feedback
	}
	return &FeedbackService{
		store: store,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

// SubmitFeedback appends a feedback record and applies the rating
// delta to every cited document's weight.
func (s *FeedbackService) SubmitFeedback(
	ctx context.Context,
	answerID, query string,
	documentIDs []string,
	rating int,
	comment string,
) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidRating, rating)
	}
	if answerID == "" {
		return fmt.Errorf("%w: empty answer id", domain.ErrInvalidInput)
	}

	rec := domain.FeedbackRecord{
		ID:          uuid.New().String(),
		AnswerID:    answerID,
		Query:       query,
		DocumentIDs: documentIDs,
		Rating:      rating,
		Comment:     comment,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.AppendFeedback(ctx, rec); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}

	delta := s.cfg.RatingDeltas[rating]
	logger.Debug("Feedback %s: rating=%d delta=%+.2f docs=%d", answerID, rating, delta, len(documentIDs))

	for _, docID := range documentIDs {
		if err := s.applyDelta(ctx, docID, delta); err != nil {
			return fmt.Errorf("apply delta to %s: %w", docID, err)
		}
	}
	return nil
}

// applyDelta runs a serialised read-modify-write of one document
// weight.
func (s *FeedbackService) applyDelta(ctx context.Context, documentID string, delta float64) error {
	lock := s.keyLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	weight := domain.DefaultDocumentWeight
	existing, err := s.store.GetWeight(ctx, documentID)
	if err == nil {
		weight = existing.Weight
	} else if !isNotFound(err) {
		return err
	}

	updated := domain.DocumentWeight{
		DocumentID: documentID,
		Weight:     domain.ClampWeight(weight + delta),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.store.SaveWeight(ctx, updated)
}

// Weight returns the current weight for a document, defaulting to the
// neutral value when no feedback has been recorded.
func (s *FeedbackService) Weight(ctx context.Context, documentID string) (float64, error) {
	w, err := s.store.GetWeight(ctx, documentID)
	if err != nil {
		if isNotFound(err) {
			return domain.DefaultDocumentWeight, nil
		}
		return 0, err
	}
	return w.Weight, nil
}

// keyLock returns the mutex serialising updates to one document.
func (s *FeedbackService) keyLock(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentID] = lock
	}
	return lock
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
