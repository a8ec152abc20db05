package domain

import "time"

// Weight bounds for document feedback weights.
const (
	// MinDocumentWeight is the floor a document weight can be demoted to.
	MinDocumentWeight = 0.1

	// MaxDocumentWeight is the ceiling a document weight can be promoted to.
	MaxDocumentWeight = 3.0

	// DefaultDocumentWeight is the neutral starting weight.
	DefaultDocumentWeight = 1.0
)

// FeedbackRecord is an append-only user rating of an answer.
// Records are never mutated after creation.
type FeedbackRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// AnswerID identifies the answer being rated.
	AnswerID string

	// Query is the question that produced the answer.
	Query string

	// DocumentIDs lists the documents cited by the answer.
	DocumentIDs []string

	// Rating is the user rating, 1..5.
	Rating int

	// Comment is optional free text.
	Comment string

	// CreatedAt is when the feedback was recorded.
	CreatedAt time.Time
}

// DocumentWeight is the feedback-derived relevance multiplier for a
// document. Mutated only by the feedback tracker via bounded deltas.
type DocumentWeight struct {
	// DocumentID identifies the document.
	DocumentID string

	// Weight is clamped to [MinDocumentWeight, MaxDocumentWeight].
	Weight float64

	// UpdatedAt is when the weight last changed.
	UpdatedAt time.Time
}

// ClampWeight bounds a weight to the allowed range.
func ClampWeight(w float64) float64 {
	if w < MinDocumentWeight {
		return MinDocumentWeight
	}
	if w > MaxDocumentWeight {
		return MaxDocumentWeight
	}
	return w
}
