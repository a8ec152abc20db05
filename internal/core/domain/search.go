package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// TopK is the maximum number of results. Defaults to 10.
	TopK int

	// Categories filters results to specific document categories.
	Categories []string

	// IncludeAllChunks disables per-document deduplication, allowing
	// multiple chunks of one document to appear. By default only the
	// best-scoring chunk per document is returned.
	IncludeAllChunks bool
}

// Citation carries the provenance attached to every search result.
type Citation struct {
	// SourceURI is the original document location.
	SourceURI string

	// Filename is the display name of the source file.
	Filename string

	// Category of the owning document.
	Category string

	// Year of the owning document.
	Year int
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// DocumentID identifies the owning document.
	DocumentID string

	// Text is the matched chunk content.
	Text string

	// Score is the composite reranking score.
	Score float64

	// Semantic is the raw similarity component, zero in degraded mode.
	Semantic float64

	// Freshness is the owning document's freshness score.
	Freshness float64

	// Citation carries source, category and year.
	Citation Citation
}

// SearchResponse wraps the ranked results with degradation info.
// Partial results are always preferable to hard errors: when the
// embedding provider is unavailable the response is flagged instead
// of failing the whole request.
type SearchResponse struct {
	// Results in non-increasing composite-score order, at most TopK,
	// one per document.
	Results []SearchResult

	// Degraded is true when a scoring signal was unavailable.
	Degraded bool

	// DegradedReason explains which signal was missing
	// (e.g. "embedding provider unavailable; lexical-only scoring").
	DegradedReason string
}
