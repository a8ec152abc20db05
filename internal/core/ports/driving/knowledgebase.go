package driving

import (
	"context"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// IngestOptions configures a single ingestion.
type IngestOptions struct {
	// ForceUpdate re-indexes content even when the content hash is
	// already known.
	ForceUpdate bool
}

// IngestResult describes a successful ingestion.
type IngestResult struct {
	// DocumentID is the newly created document.
	DocumentID string

	// ChunkCount is the number of chunks indexed.
	ChunkCount int

	// FreshnessScore assigned to the document.
	FreshnessScore float64

	// Outdated is true for historical documents.
	Outdated bool
}

// KnowledgeBase is the full inbound surface of the retrieval engine:
// ingestion, search, feedback and the admin operations.
type KnowledgeBase interface {
	// Ingest indexes raw text with its extraction metadata.
	// Returns a *domain.DuplicateError (wrapped ErrDuplicateDocument)
	// for already-indexed content, or a *domain.QualityGateError
	// (wrapped ErrQualityGate) listing every failed rule.
	Ingest(ctx context.Context, rawText string, meta domain.DocumentMetadata, opts IngestOptions) (*IngestResult, error)

	// Search returns ranked, citation-annotated results. Provider
	// failures degrade the response rather than failing it.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

	// SubmitFeedback records a rating and adjusts the weights of the
	// cited documents.
	SubmitFeedback(ctx context.Context, answerID, query string, documentIDs []string, rating int, comment string) error

	// IntegrityReport checks index/metadata parity. Detected drift
	// auto-triggers a rebuild; the report says so.
	IntegrityReport(ctx context.Context) (*domain.IntegrityReport, error)

	// TriggerRebuild re-derives the index from stored chunks and swaps
	// it atomically. Idempotent on a consistent index.
	TriggerRebuild(ctx context.Context) error

	// FreshnessReport summarises the temporal distribution of the
	// corpus, recomputing freshness scores idempotently.
	FreshnessReport(ctx context.Context) (*domain.FreshnessReport, error)

	// Close flushes persisted state and shuts the service down.
	Close() error
}

// Scheduler drives periodic maintenance. The core owns no clock
// beyond this optional loop; the trigger operations above stay
// idempotent so external schedulers can call them too.
type Scheduler interface {
	// Start runs the scheduler loop until the context is cancelled or
	// Stop is called.
	Start(ctx context.Context) error

	// Stop shuts the loop down and waits for running tasks.
	Stop() error
}
