// Package sqlite provides SQLite-backed persistence for documents,
// chunks, index metadata, feedback and the embedding cache.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/veralis-labs/kbindex/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all persistence interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.kbindex/data/kbindex.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".kbindex", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "kbindex.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// MetadataStore returns a MetadataStore interface backed by this store.
func (s *Store) MetadataStore() driven.MetadataStore {
	return &metadataStore{store: s}
}

// FeedbackStore returns a FeedbackStore interface backed by this store.
func (s *Store) FeedbackStore() driven.FeedbackStore {
	return &feedbackStore{store: s}
}

// EmbeddingCacheStore returns an EmbeddingCacheStore backed by this store.
func (s *Store) EmbeddingCacheStore() driven.EmbeddingCacheStore {
	return &embeddingCacheStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, content_hash, source_uri, filename, category, year,
			 freshness_score, outdated, quality_passed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			source_uri = excluded.source_uri,
			filename = excluded.filename,
			category = excluded.category,
			year = excluded.year,
			freshness_score = excluded.freshness_score,
			outdated = excluded.outdated,
			quality_passed = excluded.quality_passed
	`, doc.ID, doc.ContentHash, doc.SourceURI, doc.Filename, doc.Category, doc.Year,
		doc.FreshnessScore, doc.Outdated, doc.QualityPassed, doc.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, content_hash, source_uri, filename, category, year,
		       freshness_score, outdated, quality_passed, created_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// GetByContentHash retrieves the document owning a content hash.
func (s *documentStore) GetByContentHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, content_hash, source_uri, filename, category, year,
		       freshness_score, outdated, quality_passed, created_at
		FROM documents WHERE content_hash = ?
	`, hash)

	return scanDocument(row)
}

// ListDocuments returns all indexed documents.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, content_hash, source_uri, filename, category, year,
		       freshness_score, outdated, quality_passed, created_at
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.ContentHash, &doc.SourceURI, &doc.Filename,
			&doc.Category, &doc.Year, &doc.FreshnessScore, &doc.Outdated,
			&doc.QualityPassed, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// SaveChunks stores chunks for a document.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingBlob := float32SliceToBytes(chunk.Embedding)

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Text,
			chunk.Position, embeddingBlob); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, position, embedding
		FROM chunks WHERE id = ?
	`, id)

	var chunk domain.Chunk
	var embeddingBlob []byte
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text,
		&chunk.Position, &embeddingBlob); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// AllChunks returns every stored chunk.
func (s *documentStore) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding
		FROM chunks
		ORDER BY document_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// DeleteDocument removes a document; chunks cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ==================== Metadata Store ====================

// metadataStore implements driven.MetadataStore.
type metadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*metadataStore)(nil)

// Append adds records for newly indexed vectors.
func (s *metadataStore) Append(ctx context.Context, records []domain.MetadataRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_metadata (chunk_id, document_id, vector_offset, filename, category)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			vector_offset = excluded.vector_offset,
			filename = excluded.filename,
			category = excluded.category
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ChunkID, rec.DocumentID,
			rec.VectorOffset, rec.Filename, rec.Category); err != nil {
			return fmt.Errorf("saving metadata record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Count returns the number of records.
func (s *metadataStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM index_metadata").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting metadata records: %w", err)
	}
	return count, nil
}

// ListAll returns every record in vector-offset order.
func (s *metadataStore) ListAll(ctx context.Context) ([]domain.MetadataRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, vector_offset, filename, category
		FROM index_metadata
		ORDER BY vector_offset
	`)
	if err != nil {
		return nil, fmt.Errorf("querying metadata records: %w", err)
	}
	defer rows.Close()

	var records []domain.MetadataRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.MetadataRecord
		if err := rows.Scan(&rec.ChunkID, &rec.DocumentID, &rec.VectorOffset,
			&rec.Filename, &rec.Category); err != nil {
			return nil, fmt.Errorf("scanning metadata record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metadata records: %w", err)
	}

	return records, nil
}

// InvalidRecords returns chunk IDs of records missing required fields.
func (s *metadataStore) InvalidRecords(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id FROM index_metadata
		WHERE chunk_id = '' OR document_id = '' OR filename = '' OR category = ''
	`)
	if err != nil {
		return nil, fmt.Errorf("querying invalid records: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invalid records: %w", err)
	}

	return ids, nil
}

// DeleteByDocument removes all records for a document.
func (s *metadataStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM index_metadata WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting metadata records: %w", err)
	}
	return nil
}

// ReplaceAll atomically swaps the full record set.
func (s *metadataStore) ReplaceAll(ctx context.Context, records []domain.MetadataRecord) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_metadata"); err != nil {
		return fmt.Errorf("clearing metadata records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_metadata (chunk_id, document_id, vector_offset, filename, category)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ChunkID, rec.DocumentID,
			rec.VectorOffset, rec.Filename, rec.Category); err != nil {
			return fmt.Errorf("saving metadata record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Feedback Store ====================

// feedbackStore implements driven.FeedbackStore.
type feedbackStore struct {
	store *Store
}

var _ driven.FeedbackStore = (*feedbackStore)(nil)

// AppendFeedback stores an immutable feedback record.
func (s *feedbackStore) AppendFeedback(ctx context.Context, rec domain.FeedbackRecord) error {
	docIDsJSON, err := json.Marshal(rec.DocumentIDs)
	if err != nil {
		return fmt.Errorf("marshalling document ids: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO feedback (id, answer_id, query, document_ids, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.AnswerID, rec.Query, string(docIDsJSON), rec.Rating, rec.Comment, rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	return nil
}

// ListFeedback returns records for an answer, oldest first.
func (s *feedbackStore) ListFeedback(ctx context.Context, answerID string) ([]domain.FeedbackRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, answer_id, query, document_ids, rating, comment, created_at
		FROM feedback WHERE answer_id = ?
		ORDER BY created_at
	`, answerID)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var records []domain.FeedbackRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.FeedbackRecord
		var docIDsJSON string
		if err := rows.Scan(&rec.ID, &rec.AnswerID, &rec.Query, &docIDsJSON,
			&rec.Rating, &rec.Comment, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}

		if err := json.Unmarshal([]byte(docIDsJSON), &rec.DocumentIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling document ids: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}

	return records, nil
}

// GetWeight returns the weight for a document.
func (s *feedbackStore) GetWeight(ctx context.Context, documentID string) (*domain.DocumentWeight, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, weight, updated_at
		FROM document_weights WHERE document_id = ?
	`, documentID)

	var w domain.DocumentWeight
	if err := row.Scan(&w.DocumentID, &w.Weight, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document weight: %w", err)
	}

	return &w, nil
}

// SaveWeight stores or updates a document weight.
func (s *feedbackStore) SaveWeight(ctx context.Context, w domain.DocumentWeight) error {
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_weights (document_id, weight, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			weight = excluded.weight,
			updated_at = excluded.updated_at
	`, w.DocumentID, w.Weight, w.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document weight: %w", err)
	}
	return nil
}

// ==================== Embedding Cache Store ====================

// embeddingCacheStore implements driven.EmbeddingCacheStore.
type embeddingCacheStore struct {
	store *Store
}

var _ driven.EmbeddingCacheStore = (*embeddingCacheStore)(nil)

// GetEmbedding retrieves a cached embedding by key.
func (s *embeddingCacheStore) GetEmbedding(ctx context.Context, key string) ([]float32, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT embedding FROM embedding_cache WHERE cache_key = ?", key)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	return bytesToFloat32Slice(blob), nil
}

// PutEmbedding stores an embedding under a key.
func (s *embeddingCacheStore) PutEmbedding(ctx context.Context, key string, embedding []float32) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (cache_key, embedding)
		VALUES (?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			embedding = excluded.embedding
	`, key, float32SliceToBytes(embedding))

	if err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	if err := row.Scan(&doc.ID, &doc.ContentHash, &doc.SourceURI, &doc.Filename,
		&doc.Category, &doc.Year, &doc.FreshnessScore, &doc.Outdated,
		&doc.QualityPassed, &doc.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return &doc, nil
}

// scanChunks scans multiple chunk rows.
func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text,
			&chunk.Position, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}
