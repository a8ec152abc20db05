package driven

import "context"

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}

// IndexEntry pairs a chunk ID with its vector.
type IndexEntry struct {
	ChunkID string
	Vector  []float32
}

// IndexSnapshot is an immutable copy of the index contents, used for
// persistence and for copy-on-write rebuilds.
type IndexSnapshot struct {
	// Dimension of every vector in Entries.
	Dimension int

	// Entries in vector-offset order.
	Entries []IndexEntry
}

// VectorIndex provides approximate-nearest-neighbour operations over
// chunk embeddings.
//
// Concurrency contract: Search operates against a stable state
// reference and is never blocked by Restore. Restore builds the new
// state off to the side and swaps it atomically, so readers never
// observe a partially-rebuilt index.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID.
	Add(ctx context.Context, chunkID string, vector []float32) error

	// Delete removes a vector from the index. Unknown IDs are no-ops.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k most similar vectors to the query.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Count returns the number of vectors physically stored.
	Count(ctx context.Context) (int, error)

	// Snapshot returns an immutable copy of the index contents.
	Snapshot(ctx context.Context) (*IndexSnapshot, error)

	// Restore atomically replaces the index contents with the snapshot
	// and persists it.
	Restore(ctx context.Context, snap *IndexSnapshot) error

	// Close persists pending state and releases resources.
	Close() error
}
