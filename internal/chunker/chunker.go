// Package chunker provides deterministic fixed-size text chunking
// with overlap.
package chunker

import (
	"github.com/google/uuid"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits document text into fixed-size overlapping windows.
// The split points are a pure function of the text and the window
// parameters, so re-chunking the same document is deterministic.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSize sets the chunk size in characters.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave the window moving forward
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Split chunks the text of a document. Chunk IDs are fresh UUIDs;
// positions are ordinal from zero.
func (c *Chunker) Split(documentID, text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	textLen := len(text)
	estimated := (textLen / (c.size - c.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	position := 0
	start := 0

	for start < textLen {
		end := start + c.size
		if end > textLen {
			end = textLen
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Text:       text[start:end],
			Position:   position,
		})
		position++

		start += c.size - c.overlap
	}

	return chunks
}
