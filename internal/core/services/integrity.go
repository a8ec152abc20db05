package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// IntegrityService compares the vector index against the metadata
// store and repairs drift by rebuilding the index from source chunks.
//
// Rebuild is copy-on-write: the replacement index state is constructed
// off to the side and swapped atomically, so concurrent searches never
// observe a partially-rebuilt index. Rebuilding an already-consistent
// index is a no-op with respect to observable state.
type IntegrityService struct {
	docStore  driven.DocumentStore
	metaStore driven.MetadataStore
	index     driven.VectorIndex
	embedder  driven.EmbeddingProvider

	maxConcurrent int

	mu         sync.Mutex
	rebuilding bool
}

// NewIntegrityService creates the checker.
func NewIntegrityService(
	docStore driven.DocumentStore,
	metaStore driven.MetadataStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingProvider,
	maxConcurrent int,
) *IntegrityService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &IntegrityService{
		docStore:      docStore,
		metaStore:     metaStore,
		index:         index,
		embedder:      embedder,
		maxConcurrent: maxConcurrent,
	}
}

// Check compares vector and metadata cardinality and validates the
// required fields of every record. Detected drift automatically
// triggers a rebuild; the report records that it did.
func (s *IntegrityService) Check(ctx context.Context) (*domain.IntegrityReport, error) {
	logger.Section("Integrity Check")

	report, err := s.inspect(ctx)
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		logger.Warn("Integrity drift: vectors=%d metadata=%d invalid=%d",
			report.VectorCount, report.MetadataCount, len(report.InvalidRecords))
		if err := s.Rebuild(ctx); err != nil {
			return report, fmt.Errorf("%w: auto-rebuild failed: %w", domain.ErrIndexCorruption, err)
		}
		report.RebuildTriggered = true
	}

	return report, nil
}

// inspect computes the report without acting on it.
func (s *IntegrityService) inspect(ctx context.Context) (*domain.IntegrityReport, error) {
	vectorCount, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("index count: %w", err)
	}
	metaCount, err := s.metaStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("metadata count: %w", err)
	}
	invalid, err := s.metaStore.InvalidRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate metadata: %w", err)
	}

	return &domain.IntegrityReport{
		VectorCount:    vectorCount,
		MetadataCount:  metaCount,
		InvalidRecords: invalid,
		Consistent:     vectorCount == metaCount && len(invalid) == 0,
		CheckedAt:      time.Now().UTC(),
	}, nil
}

// Rebuild re-derives index and metadata from stored chunks, re-running
// embedding generation through the cache. The active index keeps
// serving reads until the final atomic swap; cancelling the context
// aborts the rebuild without touching it.
func (s *IntegrityService) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	if s.rebuilding {
		s.mu.Unlock()
		return domain.ErrRebuildInProgress
	}
	s.rebuilding = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.rebuilding = false
		s.mu.Unlock()
	}()

	if s.embedder == nil {
		return fmt.Errorf("rebuild: %w", domain.ErrProviderUnavailable)
	}

	logger.Section("Index Rebuild")

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	// Stable document order makes consecutive rebuilds reproduce the
	// same vector offsets.
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	var entries []driven.IndexEntry
	var records []domain.MetadataRecord

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks, err := s.docStore.GetChunks(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("get chunks for %s: %w", doc.ID, err)
		}

		vectors, err := s.embedAll(ctx, chunks)
		if err != nil {
			return fmt.Errorf("embed chunks for %s: %w", doc.ID, err)
		}

		for i := range chunks {
			records = append(records, domain.MetadataRecord{
				ChunkID:      chunks[i].ID,
				DocumentID:   doc.ID,
				VectorOffset: len(entries),
				Filename:     doc.Filename,
				Category:     doc.Category,
			})
			entries = append(entries, driven.IndexEntry{
				ChunkID: chunks[i].ID,
				Vector:  vectors[i],
			})
		}
		logger.Debug("Rebuilt %d chunks for document %s", len(chunks), doc.ID)
	}

	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}

	// Swap: index first, then metadata. A crash between the two leaves
	// a drift the next integrity check detects and repairs.
	if err := s.index.Restore(ctx, &driven.IndexSnapshot{Dimension: dim, Entries: entries}); err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	if err := s.metaStore.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}

	logger.Info("Rebuild complete: %d vectors across %d documents", len(entries), len(docs))
	return nil
}

// embedAll re-embeds chunk texts with bounded concurrency. Cached
// embeddings make this cheap for unchanged content.
func (s *IntegrityService) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
