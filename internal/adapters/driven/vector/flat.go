// Package vector provides a pure-Go brute-force cosine similarity
// index with binary snapshot persistence.
package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an exact nearest-neighbour index over chunk embeddings.
// Brute-force search is O(n) per query, which comfortably covers a
// knowledge base of tens of thousands of chunks.
//
// Reads search the current state under a read lock. Restore builds the
// replacement state outside any lock and swaps it in one short write
// section, so searches issued during a rebuild always see either the
// old or the new index, never a mix.
type Index struct {
	path string

	mu    sync.RWMutex
	st    *state
	dirty bool
}

// state is the swappable index content. ids and vectors are parallel
// slices in vector-offset order; norms caches vector magnitudes.
type state struct {
	dimension int
	ids       []string
	vectors   [][]float32
	norms     []float64
	offsets   map[string]int
}

func newState(dimension int) *state {
	return &state{
		dimension: dimension,
		offsets:   make(map[string]int),
	}
}

// New creates an index persisted at path. An existing snapshot file is
// loaded; a missing one starts the index empty.
func New(path string) (*Index, error) {
	idx := &Index{path: path, st: newState(0)}

	if path != "" {
		snap, err := readSnapshotFile(path)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if snap != nil {
			idx.st = stateFromSnapshot(snap)
		}
	}

	return idx, nil
}

// Add inserts a vector for the given chunk ID. The first insertion
// fixes the index dimension.
func (x *Index) Add(_ context.Context, chunkID string, vector []float32) error {
	if chunkID == "" {
		return fmt.Errorf("empty chunk id")
	}
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for chunk %s", chunkID)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.st.dimension == 0 {
		x.st.dimension = len(vector)
	}
	if len(vector) != x.st.dimension {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", x.st.dimension, len(vector))
	}
	if _, exists := x.st.offsets[chunkID]; exists {
		return fmt.Errorf("chunk %s already indexed", chunkID)
	}

	// Store a copy so callers can't mutate indexed vectors.
	v := make([]float32, len(vector))
	copy(v, vector)

	x.st.offsets[chunkID] = len(x.st.ids)
	x.st.ids = append(x.st.ids, chunkID)
	x.st.vectors = append(x.st.vectors, v)
	x.st.norms = append(x.st.norms, norm(v))
	x.dirty = true

	return nil
}

// Delete removes a vector. Unknown IDs are no-ops. The last vector is
// swapped into the freed slot to keep the slices dense.
func (x *Index) Delete(_ context.Context, chunkID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	pos, ok := x.st.offsets[chunkID]
	if !ok {
		return nil
	}

	last := len(x.st.ids) - 1
	if pos != last {
		x.st.ids[pos] = x.st.ids[last]
		x.st.vectors[pos] = x.st.vectors[last]
		x.st.norms[pos] = x.st.norms[last]
		x.st.offsets[x.st.ids[pos]] = pos
	}
	x.st.ids = x.st.ids[:last]
	x.st.vectors = x.st.vectors[:last]
	x.st.norms = x.st.norms[:last]
	delete(x.st.offsets, chunkID)
	x.dirty = true

	return nil
}

// Search returns the k most cosine-similar vectors to the query,
// best first.
func (x *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	// Add and Delete mutate the state in place, so the read lock is
	// held for the whole scan, not just the pointer copy.
	x.mu.RLock()
	defer x.mu.RUnlock()
	st := x.st

	if len(st.ids) == 0 {
		return []driven.VectorHit{}, nil
	}
	if len(query) != st.dimension {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", st.dimension, len(query))
	}

	qnorm := norm(query)
	if qnorm == 0 {
		return []driven.VectorHit{}, nil
	}

	// Min-heap of the best k seen so far; the root is the worst kept
	// hit and is evicted when a better one arrives.
	h := &hitHeap{}
	heap.Init(h)

	for i, vec := range st.vectors {
		if st.norms[i] == 0 {
			continue
		}
		sim := dot(query, vec) / (qnorm * st.norms[i])
		if h.Len() < k {
			heap.Push(h, driven.VectorHit{ChunkID: st.ids[i], Similarity: sim})
		} else if sim > (*h)[0].Similarity {
			heap.Pop(h)
			heap.Push(h, driven.VectorHit{ChunkID: st.ids[i], Similarity: sim})
		}
	}

	hits := make([]driven.VectorHit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(driven.VectorHit)
	}
	return hits, nil
}

// Count returns the number of vectors physically stored.
func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.st.ids), nil
}

// Snapshot returns an immutable copy of the index contents in
// vector-offset order.
func (x *Index) Snapshot(_ context.Context) (*driven.IndexSnapshot, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	st := x.st

	snap := &driven.IndexSnapshot{
		Dimension: st.dimension,
		Entries:   make([]driven.IndexEntry, len(st.ids)),
	}
	for i, id := range st.ids {
		v := make([]float32, len(st.vectors[i]))
		copy(v, st.vectors[i])
		snap.Entries[i] = driven.IndexEntry{ChunkID: id, Vector: v}
	}
	return snap, nil
}

// Restore atomically replaces the index contents with the snapshot and
// persists it. The new state is fully built before the swap.
func (x *Index) Restore(_ context.Context, snap *driven.IndexSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	for _, e := range snap.Entries {
		if len(e.Vector) != snap.Dimension {
			return fmt.Errorf("snapshot entry %s: dimension mismatch", e.ChunkID)
		}
	}

	st := stateFromSnapshot(snap)

	if x.path != "" {
		if err := writeSnapshotFile(x.path, snap); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}

	x.mu.Lock()
	x.st = st
	x.dirty = false
	x.mu.Unlock()

	return nil
}

// Close persists pending state.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.dirty || x.path == "" {
		return nil
	}

	snap := &driven.IndexSnapshot{
		Dimension: x.st.dimension,
		Entries:   make([]driven.IndexEntry, len(x.st.ids)),
	}
	for i, id := range x.st.ids {
		snap.Entries[i] = driven.IndexEntry{ChunkID: id, Vector: x.st.vectors[i]}
	}

	if err := writeSnapshotFile(x.path, snap); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	x.dirty = false
	return nil
}

// Flush persists the current state without closing.
func (x *Index) Flush() error {
	return x.Close()
}

func stateFromSnapshot(snap *driven.IndexSnapshot) *state {
	st := newState(snap.Dimension)
	st.ids = make([]string, len(snap.Entries))
	st.vectors = make([][]float32, len(snap.Entries))
	st.norms = make([]float64, len(snap.Entries))
	for i, e := range snap.Entries {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		st.ids[i] = e.ChunkID
		st.vectors[i] = v
		st.norms[i] = norm(v)
		st.offsets[e.ChunkID] = i
	}
	return st
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// hitHeap is a min-heap over similarity.
type hitHeap []driven.VectorHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return h[i].Similarity < h[j].Similarity }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(v any) {
	*h = append(*h, v.(driven.VectorHit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
