package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veralis-labs/kbindex/internal/chunker"
	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/core/ports/driving"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// Ensure KnowledgeBaseService implements the interface.
var _ driving.KnowledgeBase = (*KnowledgeBaseService)(nil)

// KnowledgeBaseService is the explicit service object tying the
// pipeline together. All dependencies are injected; there is no
// ambient global state.
type KnowledgeBaseService struct {
	docStore  driven.DocumentStore
	index     driven.VectorIndex
	embedder  driven.EmbeddingProvider
	freshness *FreshnessScorer

	ingestion *IngestionService
	search    *SearchService
	feedback  *FeedbackService
	integrity *IntegrityService

	mu     sync.Mutex
	closed bool
}

// NewKnowledgeBase wires the service from injected dependencies.
// embedder and entityExtractor may be nil: search then runs
// lexical-only and the quality gate skips the entity rule.
func NewKnowledgeBase(
	cfg domain.Config,
	docStore driven.DocumentStore,
	metaStore driven.MetadataStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingProvider,
	feedbackStore driven.FeedbackStore,
	entityExtractor driven.EntityExtractor,
) *KnowledgeBaseService {
	freshness := NewFreshnessScorer(cfg.Freshness)
	gate := NewQualityGate(cfg.Quality, entityExtractor)
	ch := chunker.New(
		chunker.WithSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)

	return &KnowledgeBaseService{
		docStore:  docStore,
		index:     index,
		embedder:  embedder,
		freshness: freshness,
		ingestion: NewIngestionService(
			docStore, metaStore, index, embedder, gate, freshness, ch,
			cfg.Provider.MaxConcurrent,
		),
		search:   NewSearchService(docStore, index, embedder, feedbackStore, cfg.Rerank),
		feedback: NewFeedbackService(feedbackStore, cfg.Feedback),
		integrity: NewIntegrityService(
			docStore, metaStore, index, embedder,
			cfg.Provider.MaxConcurrent,
		),
	}
}

// Ingest indexes raw text with its extraction metadata.
func (s *KnowledgeBaseService) Ingest(
	ctx context.Context, rawText string, meta domain.DocumentMetadata, opts driving.IngestOptions,
) (*driving.IngestResult, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	return s.ingestion.Ingest(ctx, rawText, meta, opts)
}

// Search returns ranked, citation-annotated results.
func (s *KnowledgeBaseService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	return s.search.Search(ctx, query, opts)
}

// SubmitFeedback records a rating and adjusts cited document weights.
func (s *KnowledgeBaseService) SubmitFeedback(
	ctx context.Context, answerID, query string, documentIDs []string, rating int, comment string,
) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.feedback.SubmitFeedback(ctx, answerID, query, documentIDs, rating, comment)
}

// IntegrityReport checks index/metadata parity, auto-rebuilding on
// drift.
func (s *KnowledgeBaseService) IntegrityReport(ctx context.Context) (*domain.IntegrityReport, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	return s.integrity.Check(ctx)
}

// TriggerRebuild re-derives the index from stored chunks. Idempotent
// on a consistent index.
func (s *KnowledgeBaseService) TriggerRebuild(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.integrity.Rebuild(ctx)
}

// FreshnessReport recomputes freshness for every document and
// summarises the corpus by age band. Recomputation is idempotent: the
// score is a pure function of year and current time.
func (s *KnowledgeBaseService) FreshnessReport(ctx context.Context) (*domain.FreshnessReport, error) {
	if err := s.live(); err != nil {
		return nil, err
	}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	report := &domain.FreshnessReport{
		Total:       len(docs),
		ByBucket:    make(map[domain.FreshnessBucket]int),
		GeneratedAt: time.Now().UTC(),
	}

	for i := range docs {
		doc := &docs[i]
		score, outdated := s.freshness.Score(doc.Year)
		if score != doc.FreshnessScore || outdated != doc.Outdated {
			doc.FreshnessScore = score
			doc.Outdated = outdated
			if err := s.docStore.SaveDocument(ctx, doc); err != nil {
				return nil, fmt.Errorf("update freshness for %s: %w", doc.ID, err)
			}
			logger.Debug("Recomputed freshness for %s: %.3f", doc.ID, score)
		}

		report.ByBucket[s.freshness.Bucket(doc.Year)]++
		if outdated {
			report.Outdated = append(report.Outdated, doc.ID)
		}
	}
	sort.Strings(report.Outdated)

	return report, nil
}

// Close flushes the index snapshot and releases the embedder.
func (s *KnowledgeBaseService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			return fmt.Errorf("close embedder: %w", err)
		}
	}
	return nil
}

func (s *KnowledgeBaseService) live() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrClosed
	}
	return nil
}
