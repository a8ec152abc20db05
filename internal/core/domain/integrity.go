package domain

import "time"

// IntegrityReport is the result of comparing the vector index against
// the metadata store.
type IntegrityReport struct {
	// VectorCount is the number of vectors physically in the index.
	VectorCount int

	// MetadataCount is the number of metadata records.
	MetadataCount int

	// InvalidRecords lists chunk IDs of records missing required fields.
	InvalidRecords []string

	// Consistent is true when counts match and all records are valid.
	Consistent bool

	// RebuildTriggered is true when the check auto-triggered a rebuild.
	RebuildTriggered bool

	// CheckedAt is when the check ran.
	CheckedAt time.Time
}
