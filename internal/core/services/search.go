package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// scoredCandidate holds intermediate search results before final
// ranking and deduplication.
type scoredCandidate struct {
	chunk     domain.Chunk
	doc       domain.Document
	semantic  float64
	lexical   float64
	weight    float64
	composite float64
}

// SearchService is the multi-signal retrieval orchestrator. It embeds
// the query, pulls an oversized ANN candidate set, reranks with a
// weighted combination of semantic similarity, document freshness,
// feedback weight and lexical overlap, then deduplicates per document.
type SearchService struct {
	docStore      driven.DocumentStore
	index         driven.VectorIndex
	embedder      driven.EmbeddingProvider
	feedbackStore driven.FeedbackStore
	cfg           domain.RerankConfig
}

// NewSearchService creates the orchestrator. The embedder is optional:
// when nil every search runs in lexical-only mode.
func NewSearchService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingProvider,
	feedbackStore driven.FeedbackStore,
	cfg domain.RerankConfig,
) *SearchService {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 50
	}
	return &SearchService{
		docStore:      docStore,
		index:         index,
		embedder:      embedder,
		feedbackStore: feedbackStore,
		cfg:           cfg,
	}
}

// Search returns ranked, citation-annotated results.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return &domain.SearchResponse{Results: []domain.SearchResult{}}, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	resp := &domain.SearchResponse{}

	// 1. QUERY EMBEDDING (degrade to lexical-only on provider failure)
	var queryVec []float32
	if s.embedder == nil {
		resp.Degraded = true
		resp.DegradedReason = "embedding provider not configured; lexical-only scoring"
	} else {
		vec, err := s.embedder.Embed(ctx, query)
		switch {
		case err == nil:
			queryVec = vec
		case errors.Is(err, domain.ErrProviderUnavailable),
			errors.Is(err, domain.ErrProviderQuotaExceeded),
			errors.Is(err, context.DeadlineExceeded):
			logger.Warn("Query embedding failed, degrading to lexical-only: %v", err)
			resp.Degraded = true
			resp.DegradedReason = "embedding provider unavailable; lexical-only scoring"
		default:
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	// 2. CANDIDATE RETRIEVAL
	var candidates []scoredCandidate
	var err error
	if queryVec != nil {
		candidates, err = s.semanticCandidates(ctx, query, queryVec)
	} else {
		candidates, err = s.lexicalCandidates(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Candidates: %d", len(candidates))

	// 3. CATEGORY FILTER
	if len(opts.Categories) > 0 {
		candidates = filterByCategory(candidates, opts.Categories)
		logger.Debug("After category filter: %d", len(candidates))
	}

	// 4. COMPOSITE SCORE + DETERMINISTIC ORDER
	for i := range candidates {
		candidates[i].composite = s.composite(&candidates[i], resp.Degraded)
	}
	sortCandidates(candidates)

	// 5. DEDUPLICATE PER DOCUMENT, KEEPING THE BEST CHUNK
	if !opts.IncludeAllChunks {
		candidates = dedupeByDocument(candidates)
	}

	// 6. TRUNCATE AND ATTACH CITATIONS
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, domain.SearchResult{
			ChunkID:    c.chunk.ID,
			DocumentID: c.doc.ID,
			Text:       c.chunk.Text,
			Score:      c.composite,
			Semantic:   c.semantic,
			Freshness:  c.doc.FreshnessScore,
			Citation: domain.Citation{
				SourceURI: c.doc.SourceURI,
				Filename:  c.doc.Filename,
				Category:  c.doc.Category,
				Year:      c.doc.Year,
			},
		})
	}
	resp.Results = results

	logger.Info("Final results: %d (degraded=%t)", len(results), resp.Degraded)
	return resp, nil
}

// semanticCandidates pulls the oversized ANN candidate pool and
// hydrates each hit with its chunk, document and feedback weight.
func (s *SearchService) semanticCandidates(
	ctx context.Context, query string, queryVec []float32,
) ([]scoredCandidate, error) {
	hits, err := s.index.Search(ctx, queryVec, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]scoredCandidate, 0, len(hits))
	for _, hit := range hits {
		c, err := s.hydrate(ctx, hit.ChunkID, query)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Chunk or document removed since indexing; the next
				// integrity check reconciles the index.
				continue
			}
			return nil, err
		}
		c.semantic = hit.Similarity
		candidates = append(candidates, *c)
	}
	return candidates, nil
}

// lexicalCandidates scores every stored chunk by token overlap and
// keeps the best CandidateLimit. Used in degraded mode.
func (s *SearchService) lexicalCandidates(ctx context.Context, query string) ([]scoredCandidate, error) {
	chunks, err := s.docStore.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	var candidates []scoredCandidate //nolint:prealloc // filtered below
	for _, chunk := range chunks {
		overlap := lexicalOverlap(query, chunk.Text)
		if overlap == 0 {
			continue
		}
		c, err := s.hydrate(ctx, chunk.ID, query)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].lexical != candidates[j].lexical {
			return candidates[i].lexical > candidates[j].lexical
		}
		return candidates[i].chunk.ID < candidates[j].chunk.ID
	})
	if len(candidates) > s.cfg.CandidateLimit {
		candidates = candidates[:s.cfg.CandidateLimit]
	}
	return candidates, nil
}

// hydrate loads chunk, owning document, feedback weight and the
// lexical overlap for a candidate.
func (s *SearchService) hydrate(ctx context.Context, chunkID, query string) (*scoredCandidate, error) {
	chunk, err := s.docStore.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
	}

	weight := domain.DefaultDocumentWeight
	if s.feedbackStore != nil {
		w, err := s.feedbackStore.GetWeight(ctx, doc.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get weight %s: %w", doc.ID, err)
		}
		if w != nil {
			weight = w.Weight
		}
	}

	return &scoredCandidate{
		chunk:   *chunk,
		doc:     *doc,
		lexical: lexicalOverlap(query, chunk.Text),
		weight:  weight,
	}, nil
}

// composite combines the scoring signals. The feedback weight is
// normalised by its upper bound so every term stays in [0,1]. In
// degraded mode the semantic term is dropped entirely.
func (s *SearchService) composite(c *scoredCandidate, degraded bool) float64 {
	score := s.cfg.Freshness*c.doc.FreshnessScore +
		s.cfg.Feedback*(c.weight/domain.MaxDocumentWeight) +
		s.cfg.Lexical*c.lexical
	if !degraded {
		score += s.cfg.Semantic * c.semantic
	}
	return score
}

// sortCandidates orders by descending composite score with
// deterministic tie-breaks: document recency, then document ID, then
// chunk ID. Repeated queries against an unchanged index reproduce the
// same order.
func sortCandidates(candidates []scoredCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if a.composite != b.composite {
			return a.composite > b.composite
		}
		if a.doc.Year != b.doc.Year {
			return a.doc.Year > b.doc.Year
		}
		if a.doc.ID != b.doc.ID {
			return a.doc.ID < b.doc.ID
		}
		return a.chunk.ID < b.chunk.ID
	})
}

// dedupeByDocument keeps only the first (highest-scoring) chunk per
// document. Candidates must already be sorted.
func dedupeByDocument(candidates []scoredCandidate) []scoredCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c.doc.ID]; ok {
			continue
		}
		seen[c.doc.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// filterByCategory keeps candidates whose document category matches.
func filterByCategory(candidates []scoredCandidate, categories []string) []scoredCandidate {
	allowed := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		allowed[strings.ToLower(cat)] = struct{}{}
	}
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := allowed[strings.ToLower(c.doc.Category)]; ok {
			out = append(out, c)
		}
	}
	return out
}
