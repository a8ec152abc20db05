package vector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New("")
	require.NoError(t, err)
	return idx
}

func TestIndex_AddAndCount(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "c2", []float32{0, 1, 0}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndex_AddRejectsDuplicateID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0, 0}))
	assert.Error(t, idx.Add(ctx, "c1", []float32{0, 1, 0}))
}

func TestIndex_AddRejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0, 0}))
	assert.Error(t, idx.Add(ctx, "c2", []float32{1, 0}))
}

func TestIndex_AddRejectsEmptyInput(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	assert.Error(t, idx.Add(ctx, "", []float32{1}))
	assert.Error(t, idx.Add(ctx, "c1", nil))
}

func TestIndex_AddCopiesVector(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	require.NoError(t, idx.Add(ctx, "c1", vec))
	vec[0] = 0
	vec[1] = 1

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestIndex_SearchOrdersBySimilarity(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "orthogonal", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "exact", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "near", []float32{0.9, 0.1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact", hits[0].ChunkID)
	assert.Equal(t, "near", hits[1].ChunkID)
	assert.Equal(t, "orthogonal", hits[2].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-6)
}

func TestIndex_SearchTruncatesToK(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		id := "c" + string(rune('0'+i))
		require.NoError(t, idx.Add(ctx, id, []float32{1, float32(i) * 0.1, 0}))
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Equal(t, "c0", hits[0].ChunkID)
}

func TestIndex_SearchEdgeCases(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	// Empty index matches nothing regardless of query shape.
	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0, 0}))

	hits, err = idx.Search(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Zero query vector has no direction to compare against.
	hits, err = idx.Search(ctx, []float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = idx.Search(ctx, []float32{1, 0}, 5)
	assert.Error(t, err)
}

func TestIndex_DeleteKeepsSearchConsistent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "c", []float32{0, 0, 1}))

	// Deleting from the middle swaps the last vector into the slot.
	require.NoError(t, idx.Delete(ctx, "b"))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := idx.Search(ctx, []float32{0, 0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c", hits[0].ChunkID)

	// Unknown IDs are no-ops.
	require.NoError(t, idx.Delete(ctx, "missing"))
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndex_SnapshotRestoreRoundtrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1, 0}))

	snap, err := idx.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Dimension)
	require.Len(t, snap.Entries, 2)

	other := newTestIndex(t)
	require.NoError(t, other.Restore(ctx, snap))

	count, err := other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := other.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ChunkID)
}

func TestIndex_RestoreReplacesContents(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "old", []float32{1, 0, 0}))

	require.NoError(t, idx.Restore(ctx, &driven.IndexSnapshot{
		Dimension: 3,
		Entries:   []driven.IndexEntry{{ChunkID: "new", Vector: []float32{0, 1, 0}}},
	}))

	hits, err := idx.Search(ctx, []float32{1, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].ChunkID)
}

func TestIndex_RestoreValidatesSnapshot(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	assert.Error(t, idx.Restore(ctx, nil))
	assert.Error(t, idx.Restore(ctx, &driven.IndexSnapshot{
		Dimension: 3,
		Entries:   []driven.IndexEntry{{ChunkID: "bad", Vector: []float32{1, 0}}},
	}))
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.kbix")
	ctx := context.Background()

	idx, err := New(path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1, 0}))
	require.NoError(t, idx.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := reopened.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
}

func TestIndex_CloseWithoutChangesWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.kbix")

	idx, err := New(path)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestIndex_FlushPersistsWithoutClosing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.kbix")
	ctx := context.Background()

	idx, err := New(path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Flush())

	// The index stays usable after a flush.
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1, 0}))

	reopened, err := New(path)
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndex_RejectsCorruptSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.kbix")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))

	_, err := New(path)
	assert.Error(t, err)
}

func TestIndex_SearchDuringAddAndDelete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Add(ctx, fmt.Sprintf("seed-%02d", i), []float32{1, float32(i), 0}))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
			assert.NoError(t, err)
			// Every hit must be internally consistent even while
			// vectors are being added and removed.
			for _, h := range hits {
				assert.NotEmpty(t, h.ChunkID)
				assert.False(t, h.Similarity > 1.0001)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("live-%03d", i)
		require.NoError(t, idx.Add(ctx, id, []float32{0, 1, float32(i)}))
		require.NoError(t, idx.Delete(ctx, id))
	}
	<-done

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestIndex_SearchDuringRestore(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		id := "seed-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		require.NoError(t, idx.Add(ctx, id, []float32{1, float32(i), 0}))
	}
	snap, err := idx.Snapshot(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
			assert.NoError(t, err)
			// Either the old or the new state, never a torn mix.
			assert.LessOrEqual(t, len(hits), 5)
		}
	}()

	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Restore(ctx, snap))
	}
	<-done
}
