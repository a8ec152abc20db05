package driven

import (
	"context"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// TextExtractor produces raw text plus metadata from a source file.
// Parsing of source file formats happens outside the core.
type TextExtractor interface {
	// Extract reads the file at path and returns its text content and
	// extraction metadata.
	Extract(ctx context.Context, path string) (string, domain.DocumentMetadata, error)
}

// EntityExtractor counts domain entities in text. Used by the quality
// gate to reject low-signal content. Optional: a nil extractor skips
// the entity rule.
type EntityExtractor interface {
	// CountEntities returns the number of entities found in text.
	CountEntities(ctx context.Context, text string) (int, error)
}
