package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	c := New(WithSize(100), WithOverlap(20))

	chunks := c.Split("doc-1", "short clinical note")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short clinical note", chunks[0].Text)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Position)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestSplit_EmptyText(t *testing.T) {
	c := New()
	assert.Nil(t, c.Split("doc-1", ""))
}

func TestSplit_DeterministicBoundaries(t *testing.T) {
	c := New(WithSize(10), WithOverlap(3))
	text := "abcdefghijklmnopqrst"

	chunks := c.Split("doc-1", text)
	require.Len(t, chunks, 3)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "hijklmnopq", chunks[1].Text)
	assert.Equal(t, "opqrst", chunks[2].Text)

	// The same text always splits at the same offsets.
	again := c.Split("doc-1", text)
	require.Len(t, again, 3)
	for i := range chunks {
		assert.Equal(t, chunks[i].Text, again[i].Text)
	}
}

func TestSplit_OverlapSharesContent(t *testing.T) {
	c := New(WithSize(10), WithOverlap(3))

	chunks := c.Split("doc-1", strings.Repeat("x y z ", 10))
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		tail := prev[len(prev)-3:]
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail))
	}
}

func TestSplit_PositionsAreOrdinal(t *testing.T) {
	c := New(WithSize(5), WithOverlap(1))

	chunks := c.Split("doc-1", strings.Repeat("a", 30))
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
	}
}

func TestSplit_ChunkIDsAreUnique(t *testing.T) {
	c := New(WithSize(5), WithOverlap(0))

	chunks := c.Split("doc-1", strings.Repeat("a", 30))
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		assert.False(t, seen[chunk.ID])
		seen[chunk.ID] = true
	}
}

func TestNew_RepairsDegenerateOverlap(t *testing.T) {
	// Overlap at or above the window size would stall the scan.
	c := New(WithSize(8), WithOverlap(8))
	assert.Equal(t, 2, c.overlap)

	chunks := c.Split("doc-1", strings.Repeat("a", 100))
	assert.NotEmpty(t, chunks)
}

func TestNew_IgnoresInvalidOptions(t *testing.T) {
	c := New(WithSize(0), WithOverlap(-5))
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)
}
