package domain

import "time"

// Document represents an indexed knowledge-base document.
// It is created by the ingestion pipeline and immutable afterwards,
// except FreshnessScore which may be recomputed from Year at any time.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// ContentHash is the SHA-256 fingerprint of the raw text.
	// Ingestion deduplicates on this value.
	ContentHash string

	// SourceURI is the original location (file path, URL, etc).
	SourceURI string

	// Filename is the display name of the source file.
	Filename string

	// Category classifies the document (e.g. "guideline", "paper").
	Category string

	// Year is the publication year used for freshness scoring.
	Year int

	// FreshnessScore is the [0,1] temporal relevance multiplier.
	FreshnessScore float64

	// Outdated marks documents older than the aging boundary.
	Outdated bool

	// QualityPassed records that the document cleared the quality gate.
	QualityPassed bool

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time
}

// Chunk is a searchable unit within a document.
// One embedding per chunk; chunks are destroyed only by document
// removal or a full index rebuild.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links back to the owning Document (non-owning).
	DocumentID string

	// Text is the chunk content.
	Text string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for semantic search.
	Embedding []float32
}

// DocumentMetadata is the metadata supplied alongside raw text at
// ingestion time, produced by the external text-extraction collaborator.
type DocumentMetadata struct {
	// SourceURI is the original location of the document.
	SourceURI string

	// Filename is required by the quality gate.
	Filename string

	// Category is required by the quality gate.
	Category string

	// Year is the publication year; required by the quality gate.
	Year int

	// Pages is the page count reported by extraction, if any.
	Pages int
}

// MetadataRecord is the per-vector record kept in the metadata store.
// The integrity invariant is that the number of records equals the
// number of vectors physically held by the vector index, and that
// every record has Filename, Category and DocumentID populated.
type MetadataRecord struct {
	// ChunkID identifies the vector in the index.
	ChunkID string

	// DocumentID links to the owning document.
	DocumentID string

	// VectorOffset is the insertion position within the index.
	VectorOffset int

	// Filename of the source document. Required.
	Filename string

	// Category of the source document. Required.
	Category string
}

// Valid reports whether all required fields are populated.
func (r MetadataRecord) Valid() bool {
	return r.ChunkID != "" && r.DocumentID != "" && r.Filename != "" && r.Category != ""
}

// FreshnessBucket classifies documents by age band.
type FreshnessBucket string

// Freshness buckets, from newest to oldest.
const (
	FreshnessRecent     FreshnessBucket = "recent"
	FreshnessAging      FreshnessBucket = "aging"
	FreshnessHistorical FreshnessBucket = "historical"
)

// FreshnessReport summarises the temporal distribution of the corpus.
type FreshnessReport struct {
	// Total is the number of indexed documents.
	Total int

	// ByBucket counts documents per freshness band.
	ByBucket map[FreshnessBucket]int

	// Outdated lists IDs of documents flagged as outdated.
	Outdated []string

	// GeneratedAt is when the report was computed.
	GeneratedAt time.Time
}
