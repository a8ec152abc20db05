package services

import (
	"context"
	"sync"

	"github.com/veralis-labs/kbindex/internal/adapters/driven/storage/memory"
	"github.com/veralis-labs/kbindex/internal/adapters/driven/vector"
	"github.com/veralis-labs/kbindex/internal/chunker"
	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// stubEmbedder is a deterministic in-process embedding provider.
// Explicit vectors can be pinned per text; everything else gets a
// stable vector derived from the text bytes.
type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  error
	vecs  map[string][]float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vecs: make(map[string][]float32)}
}

func (e *stubEmbedder) pin(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vecs[text] = vec
}

func (e *stubEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	e.calls++
	if vec, ok := e.vecs[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}
	return deriveVec(text), nil
}

func (e *stubEmbedder) Dimensions() int      { return 3 }
func (e *stubEmbedder) ModelVersion() string { return "stub-embedder-1" }
func (e *stubEmbedder) Close() error         { return nil }

// deriveVec maps text onto a stable non-zero 3-vector.
func deriveVec(text string) []float32 {
	var a, b, c float32 = 1, 1, 1
	for i := 0; i < len(text); i++ {
		switch i % 3 {
		case 0:
			a += float32(text[i])
		case 1:
			b += float32(text[i])
		case 2:
			c += float32(text[i])
		}
	}
	return []float32{a, b, c}
}

// testFixture bundles the stores and services for pipeline tests.
type testFixture struct {
	docStore  *memory.DocumentStore
	metaStore *memory.MetadataStore
	feedback  *memory.FeedbackStore
	index     *vector.Index
	embedder  *stubEmbedder

	ingest    *IngestionService
	search    *SearchService
	integrity *IntegrityService
}

// newFixture wires an in-memory pipeline. The quality gate runs
// without an entity extractor so tests control only text and metadata.
func newFixture(embedder *stubEmbedder) *testFixture {
	docStore := memory.NewDocumentStore()
	metaStore := memory.NewMetadataStore()
	feedbackStore := memory.NewFeedbackStore()
	idx, _ := vector.New("")

	cfg := domain.DefaultConfig()
	gate := NewQualityGate(cfg.Quality, nil)
	scorer := fixedScorer(2025)
	ch := chunker.New(chunker.WithSize(cfg.Chunking.Size), chunker.WithOverlap(cfg.Chunking.Overlap))

	f := &testFixture{
		docStore:  docStore,
		metaStore: metaStore,
		feedback:  feedbackStore,
		index:     idx,
		embedder:  embedder,
	}

	// A typed nil pointer must not leak into the interface fields, or
	// the services would take the provider-configured path and panic.
	if embedder == nil {
		f.ingest = NewIngestionService(docStore, metaStore, idx, nil, gate, scorer, ch, 4)
		f.search = NewSearchService(docStore, idx, nil, feedbackStore, cfg.Rerank)
		f.integrity = NewIntegrityService(docStore, metaStore, idx, nil, 4)
		return f
	}

	f.ingest = NewIngestionService(docStore, metaStore, idx, embedder, gate, scorer, ch, 4)
	f.search = NewSearchService(docStore, idx, embedder, feedbackStore, cfg.Rerank)
	f.integrity = NewIntegrityService(docStore, metaStore, idx, embedder, 4)
	return f
}

// metaFor builds valid ingestion metadata.
func metaFor(filename, category string, year int) domain.DocumentMetadata {
	return domain.DocumentMetadata{
		SourceURI: "file:///corpus/" + filename,
		Filename:  filename,
		Category:  category,
		Year:      year,
	}
}
