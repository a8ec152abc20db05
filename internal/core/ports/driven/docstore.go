package driven

import (
	"context"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// DocumentStore persists documents and their chunks.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID, or domain.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetByContentHash retrieves the document owning a content hash,
	// or domain.ErrNotFound. Ingestion deduplicates through this.
	GetByContentHash(ctx context.Context, hash string) (*domain.Document, error)

	// ListDocuments returns all indexed documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// SaveChunks stores chunks for a document.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves a chunk by ID, or domain.ErrNotFound.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document in position order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// AllChunks returns every stored chunk. Rebuild re-derives the
	// index from this.
	AllChunks(ctx context.Context) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// MetadataStore keeps one record per vector in the index.
// The integrity checker enforces count parity with the vector index.
type MetadataStore interface {
	// Append adds records for newly indexed vectors.
	Append(ctx context.Context, records []domain.MetadataRecord) error

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// ListAll returns every record in vector-offset order.
	ListAll(ctx context.Context) ([]domain.MetadataRecord, error)

	// InvalidRecords returns chunk IDs of records missing required
	// fields.
	InvalidRecords(ctx context.Context) ([]string, error)

	// DeleteByDocument removes all records for a document. Used by
	// force re-ingestion.
	DeleteByDocument(ctx context.Context, documentID string) error

	// ReplaceAll atomically swaps the full record set. Used by rebuild.
	ReplaceAll(ctx context.Context, records []domain.MetadataRecord) error
}

// FeedbackStore persists feedback records and document weights.
type FeedbackStore interface {
	// AppendFeedback stores an immutable feedback record.
	AppendFeedback(ctx context.Context, rec domain.FeedbackRecord) error

	// ListFeedback returns records for an answer, oldest first.
	ListFeedback(ctx context.Context, answerID string) ([]domain.FeedbackRecord, error)

	// GetWeight returns the weight for a document, or domain.ErrNotFound
	// when no feedback has been recorded yet.
	GetWeight(ctx context.Context, documentID string) (*domain.DocumentWeight, error)

	// SaveWeight stores or updates a document weight.
	SaveWeight(ctx context.Context, w domain.DocumentWeight) error
}

// SchedulerStore persists background task state.
type SchedulerStore interface {
	// GetTask returns a task by ID, or nil when absent.
	GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error)

	// SaveTask stores or updates a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// ListTasks returns all tasks.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)
}
