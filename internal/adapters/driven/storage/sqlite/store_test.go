package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleDocument(id string) *domain.Document {
	return &domain.Document{
		ID:             id,
		ContentHash:    "hash-" + id,
		SourceURI:      "file:///corpus/" + id + ".txt",
		Filename:       id + ".txt",
		Category:       "guideline",
		Year:           2024,
		FreshnessScore: 0.97,
		QualityPassed:  true,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	docs := newTestStore(t).DocumentStore()
	ctx := context.Background()

	doc := sampleDocument("doc-1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, doc.SourceURI, got.SourceURI)
	assert.Equal(t, doc.Filename, got.Filename)
	assert.Equal(t, doc.Category, got.Category)
	assert.Equal(t, doc.Year, got.Year)
	assert.Equal(t, doc.FreshnessScore, got.FreshnessScore)
	assert.True(t, got.QualityPassed)
	assert.False(t, got.Outdated)
}

func TestDocumentStore_GetMissing(t *testing.T) {
	docs := newTestStore(t).DocumentStore()

	_, err := docs.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_GetByContentHash(t *testing.T) {
	docs := newTestStore(t).DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, sampleDocument("doc-1")))

	got, err := docs.GetByContentHash(ctx, "hash-doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ID)

	_, err = docs.GetByContentHash(ctx, "unknown-hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SaveUpserts(t *testing.T) {
	docs := newTestStore(t).DocumentStore()
	ctx := context.Background()

	doc := sampleDocument("doc-1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.FreshnessScore = 0.42
	doc.Outdated = true
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0.42, got.FreshnessScore)
	assert.True(t, got.Outdated)

	list, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDocumentStore_ChunksRoundtrip(t *testing.T) {
	docs := newTestStore(t).DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, sampleDocument("doc-1")))

	chunks := []domain.Chunk{
		{ID: "c2", DocumentID: "doc-1", Text: "second part", Position: 1, Embedding: []float32{0.5, -1.25, 3}},
		{ID: "c1", DocumentID: "doc-1", Text: "first part", Position: 0, Embedding: []float32{1, 2, 3}},
	}
	require.NoError(t, docs.SaveChunks(ctx, chunks))

	got, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)
	assert.Equal(t, []float32{1, 2, 3}, got[0].Embedding)
	assert.Equal(t, []float32{0.5, -1.25, 3}, got[1].Embedding)

	one, err := docs.GetChunk(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "second part", one.Text)

	_, err = docs.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_AllChunks(t *testing.T) {
	docs := newTestStore(t).DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, sampleDocument("doc-a")))
	require.NoError(t, docs.SaveDocument(ctx, sampleDocument("doc-b")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "b0", DocumentID: "doc-b", Text: "b zero", Position: 0, Embedding: []float32{1}},
		{ID: "a1", DocumentID: "doc-a", Text: "a one", Position: 1, Embedding: []float32{1}},
		{ID: "a0", DocumentID: "doc-a", Text: "a zero", Position: 0, Embedding: []float32{1}},
	}))

	all, err := docs.AllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a0", all[0].ID)
	assert.Equal(t, "a1", all[1].ID)
	assert.Equal(t, "b0", all[2].ID)
}

func TestDocumentStore_DeleteCascadesChunks(t *testing.T) {
	docs := newTestStore(t).DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, sampleDocument("doc-1")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "c1", DocumentID: "doc-1", Text: "text", Position: 0, Embedding: []float32{1}},
	}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetChunk(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStore_AppendCountList(t *testing.T) {
	meta := newTestStore(t).MetadataStore()
	ctx := context.Background()

	require.NoError(t, meta.Append(ctx, []domain.MetadataRecord{
		{ChunkID: "c1", DocumentID: "doc-1", VectorOffset: 1, Filename: "one.txt", Category: "paper"},
		{ChunkID: "c0", DocumentID: "doc-1", VectorOffset: 0, Filename: "one.txt", Category: "paper"},
	}))
	require.NoError(t, meta.Append(ctx, nil))

	count, err := meta.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	records, err := meta.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c0", records[0].ChunkID)
	assert.Equal(t, "c1", records[1].ChunkID)
}

func TestMetadataStore_InvalidRecords(t *testing.T) {
	meta := newTestStore(t).MetadataStore()
	ctx := context.Background()

	require.NoError(t, meta.Append(ctx, []domain.MetadataRecord{
		{ChunkID: "good", DocumentID: "doc-1", VectorOffset: 0, Filename: "one.txt", Category: "paper"},
		{ChunkID: "no-category", DocumentID: "doc-1", VectorOffset: 1, Filename: "one.txt"},
		{ChunkID: "no-filename", DocumentID: "doc-1", VectorOffset: 2, Category: "paper"},
	}))

	invalid, err := meta.InvalidRecords(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"no-category", "no-filename"}, invalid)
}

func TestMetadataStore_DeleteByDocument(t *testing.T) {
	meta := newTestStore(t).MetadataStore()
	ctx := context.Background()

	require.NoError(t, meta.Append(ctx, []domain.MetadataRecord{
		{ChunkID: "a0", DocumentID: "doc-a", VectorOffset: 0, Filename: "a.txt", Category: "paper"},
		{ChunkID: "b0", DocumentID: "doc-b", VectorOffset: 1, Filename: "b.txt", Category: "paper"},
	}))

	require.NoError(t, meta.DeleteByDocument(ctx, "doc-a"))

	records, err := meta.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b0", records[0].ChunkID)
}

func TestMetadataStore_ReplaceAll(t *testing.T) {
	meta := newTestStore(t).MetadataStore()
	ctx := context.Background()

	require.NoError(t, meta.Append(ctx, []domain.MetadataRecord{
		{ChunkID: "old", DocumentID: "doc-1", VectorOffset: 0, Filename: "old.txt", Category: "paper"},
	}))

	require.NoError(t, meta.ReplaceAll(ctx, []domain.MetadataRecord{
		{ChunkID: "new-1", DocumentID: "doc-2", VectorOffset: 0, Filename: "new.txt", Category: "guideline"},
		{ChunkID: "new-2", DocumentID: "doc-2", VectorOffset: 1, Filename: "new.txt", Category: "guideline"},
	}))

	records, err := meta.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new-1", records[0].ChunkID)
	assert.Equal(t, "new-2", records[1].ChunkID)
}

func TestFeedbackStore_AppendAndList(t *testing.T) {
	feedback := newTestStore(t).FeedbackStore()
	ctx := context.Background()

	first := domain.FeedbackRecord{
		ID:          "fb-1",
		AnswerID:    "ans-1",
		Query:       "warfarin dosing",
		DocumentIDs: []string{"doc-1", "doc-2"},
		Rating:      4,
		Comment:     "helpful",
		CreatedAt:   time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
	}
	second := domain.FeedbackRecord{
		ID:          "fb-2",
		AnswerID:    "ans-1",
		Query:       "warfarin dosing",
		DocumentIDs: []string{"doc-1"},
		Rating:      2,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, feedback.AppendFeedback(ctx, first))
	require.NoError(t, feedback.AppendFeedback(ctx, second))

	records, err := feedback.ListFeedback(ctx, "ans-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "fb-1", records[0].ID)
	assert.Equal(t, []string{"doc-1", "doc-2"}, records[0].DocumentIDs)
	assert.Equal(t, 4, records[0].Rating)
	assert.Equal(t, "helpful", records[0].Comment)
	assert.Equal(t, "fb-2", records[1].ID)

	other, err := feedback.ListFeedback(ctx, "ans-other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFeedbackStore_Weights(t *testing.T) {
	feedback := newTestStore(t).FeedbackStore()
	ctx := context.Background()

	_, err := feedback.GetWeight(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, feedback.SaveWeight(ctx, domain.DocumentWeight{DocumentID: "doc-1", Weight: 1.1}))
	require.NoError(t, feedback.SaveWeight(ctx, domain.DocumentWeight{DocumentID: "doc-1", Weight: 0.9}))

	w, err := feedback.GetWeight(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, w.Weight)
	assert.False(t, w.UpdatedAt.IsZero())
}

func TestEmbeddingCacheStore_Roundtrip(t *testing.T) {
	cache := newTestStore(t).EmbeddingCacheStore()
	ctx := context.Background()

	_, err := cache.GetEmbedding(ctx, "key-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, cache.PutEmbedding(ctx, "key-1", []float32{1.5, -2, 0.25}))
	got, err := cache.GetEmbedding(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2, 0.25}, got)

	require.NoError(t, cache.PutEmbedding(ctx, "key-1", []float32{9}))
	got, err = cache.GetEmbedding(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, got)
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.DocumentStore().SaveDocument(context.Background(), sampleDocument("doc-1")))
	require.NoError(t, store.Close())

	// Reopening runs migrate again against the existing schema.
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.DocumentStore().GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ID)
}
