package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veralis-labs/kbindex/internal/chunker"
	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/core/ports/driving"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// IngestionService runs the document indexing pipeline: content-hash
// dedup, quality gate, freshness scoring, chunking, cached embedding
// generation, and vector index + metadata store writes.
type IngestionService struct {
	docStore  driven.DocumentStore
	metaStore driven.MetadataStore
	index     driven.VectorIndex
	embedder  driven.EmbeddingProvider
	gate      *QualityGate
	freshness *FreshnessScorer
	chunker   *chunker.Chunker

	maxConcurrent int
}

// NewIngestionService creates the pipeline. The embedder may be nil,
// in which case documents are stored and chunked but not indexed for
// semantic search until a rebuild runs with a provider configured.
func NewIngestionService(
	docStore driven.DocumentStore,
	metaStore driven.MetadataStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingProvider,
	gate *QualityGate,
	freshness *FreshnessScorer,
	ch *chunker.Chunker,
	maxConcurrent int,
) *IngestionService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &IngestionService{
		docStore:      docStore,
		metaStore:     metaStore,
		index:         index,
		embedder:      embedder,
		gate:          gate,
		freshness:     freshness,
		chunker:       ch,
		maxConcurrent: maxConcurrent,
	}
}

// ContentHash returns the stable fingerprint used for deduplication.
func ContentHash(rawText string) string {
	sum := sha256.Sum256([]byte(rawText))
	return hex.EncodeToString(sum[:])
}

// Ingest indexes a document.
//
//nolint:gocyclo // Pipeline orchestration with sequential steps
func (s *IngestionService) Ingest(
	ctx context.Context,
	rawText string,
	meta domain.DocumentMetadata,
	opts driving.IngestOptions,
) (*driving.IngestResult, error) {
	logger.Section("Ingestion")

	if rawText == "" {
		return nil, fmt.Errorf("%w: empty document text", domain.ErrInvalidInput)
	}

	// 1. DEDUPLICATE BY CONTENT HASH
	hash := ContentHash(rawText)
	logger.Debug("Content hash: %s", hash[:12])

	existing, err := s.docStore.GetByContentHash(ctx, hash)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil && !opts.ForceUpdate {
		logger.Info("Duplicate content, already indexed as %s", existing.ID)
		return nil, &domain.DuplicateError{ExistingID: existing.ID, ContentHash: hash}
	}

	// 2. QUALITY GATE
	if err := s.gate.Check(ctx, rawText, meta); err != nil {
		logger.Warn("Quality gate rejected document: %v", err)
		return nil, err
	}

	// 3. FRESHNESS
	score, outdated := s.freshness.Score(meta.Year)
	logger.Debug("Freshness: %.3f (outdated=%t)", score, outdated)

	doc := &domain.Document{
		ID:             uuid.New().String(),
		ContentHash:    hash,
		SourceURI:      meta.SourceURI,
		Filename:       meta.Filename,
		Category:       meta.Category,
		Year:           meta.Year,
		FreshnessScore: score,
		Outdated:       outdated,
		QualityPassed:  true,
		CreatedAt:      time.Now().UTC(),
	}

	// 4. CHUNK
	chunks := s.chunker.Split(doc.ID, rawText)
	logger.Debug("Split into %d chunks", len(chunks))

	// 5. EMBED (via cache, bounded concurrency)
	if s.embedder != nil {
		if err := s.embedChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
	}

	// 6. REPLACE ON FORCE UPDATE
	// Deferred until the new content has cleared the gate and embedded,
	// so a failed resubmission leaves the original document intact.
	if existing != nil {
		logger.Info("Force update: replacing document %s", existing.ID)
		if err := s.removeDocument(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("remove existing document: %w", err)
		}
	}

	// 7. PERSIST DOCUMENT AND CHUNKS
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	// 8. INDEX VECTORS + METADATA RECORDS IN LOCKSTEP
	if s.embedder != nil {
		if err := s.indexChunks(ctx, doc, chunks); err != nil {
			return nil, fmt.Errorf("index chunks: %w", err)
		}
	}

	logger.Info("Indexed document %s (%d chunks)", doc.ID, len(chunks))
	return &driving.IngestResult{
		DocumentID:     doc.ID,
		ChunkCount:     len(chunks),
		FreshnessScore: score,
		Outdated:       outdated,
	}, nil
}

// embedChunks fills in chunk embeddings with bounded concurrency.
// The cache layer below handles rate limiting and retries.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunks[i].Position, err)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}

	return g.Wait()
}

// indexChunks writes vectors to the index and the matching records to
// the metadata store. A crash between the two is repaired by the next
// integrity check.
func (s *IngestionService) indexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	offset, err := s.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("index count: %w", err)
	}

	records := make([]domain.MetadataRecord, 0, len(chunks))
	for i := range chunks {
		if err := s.index.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
			return fmt.Errorf("add vector: %w", err)
		}
		records = append(records, domain.MetadataRecord{
			ChunkID:      chunks[i].ID,
			DocumentID:   doc.ID,
			VectorOffset: offset + i,
			Filename:     doc.Filename,
			Category:     doc.Category,
		})
	}

	if err := s.metaStore.Append(ctx, records); err != nil {
		return fmt.Errorf("append metadata: %w", err)
	}
	return nil
}

// removeDocument deletes a document, its chunks, its vectors and its
// metadata records. Used by the force-update path.
func (s *IngestionService) removeDocument(ctx context.Context, documentID string) error {
	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	for _, c := range chunks {
		if err := s.index.Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("delete vector %s: %w", c.ID, err)
		}
	}
	if err := s.metaStore.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
