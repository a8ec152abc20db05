package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateDocument indicates a document with the same content
	// hash is already indexed. Ingestion is an idempotent no-op in
	// this case unless force-update is set.
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrQualityGate indicates a document was rejected before indexing.
	ErrQualityGate = errors.New("quality gate failure")

	// ErrProviderUnavailable indicates the embedding provider is
	// unreachable or failing. Callers degrade to lexical-only scoring.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrProviderQuotaExceeded indicates the embedding provider rejected
	// the request due to rate or quota limits.
	ErrProviderQuotaExceeded = errors.New("embedding provider quota exceeded")

	// ErrIndexCorruption indicates index/metadata drift detected by the
	// integrity checker. Surfaced on the admin report, never swallowed.
	ErrIndexCorruption = errors.New("index corruption detected")

	// ErrRebuildInProgress indicates a rebuild is already running.
	ErrRebuildInProgress = errors.New("rebuild in progress")

	// ErrInvalidRating indicates a feedback rating outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrClosed indicates the service has been shut down.
	ErrClosed = errors.New("knowledge base closed")
)

// DuplicateError reports an ingestion no-op caused by content-hash
// deduplication. It wraps ErrDuplicateDocument and carries the ID of
// the already-indexed document.
type DuplicateError struct {
	// ExistingID is the document that owns the content hash.
	ExistingID string

	// ContentHash is the colliding hash.
	ContentHash string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate document: content already indexed as %s", e.ExistingID)
}

// Unwrap allows errors.Is(err, ErrDuplicateDocument).
func (e *DuplicateError) Unwrap() error { return ErrDuplicateDocument }

// QualityGateError reports a quality-gate rejection. It carries every
// failed rule, not just the first one.
type QualityGateError struct {
	// Failures lists human-readable reasons for rejection.
	Failures []string
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("quality gate failure: %s", strings.Join(e.Failures, "; "))
}

// Unwrap allows errors.Is(err, ErrQualityGate).
func (e *QualityGateError) Unwrap() error { return ErrQualityGate }
