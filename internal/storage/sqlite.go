package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/saasrank/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidEntity is returned when an entity is missing required fields
	ErrInvalidEntity = errors.New("invalid entity")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory:
	// databases on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the catalog database and applies
// pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertCandidate(ctx context.Context, candidate *Candidate) error {
	return t.storage.upsertCandidateWithQuerier(ctx, t.tx, candidate)
}

func (t *sqliteTx) DeleteCandidate(ctx context.Context, id string) error {
	return t.storage.deleteCandidateWithQuerier(ctx, t.tx, id)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.tx, chunk)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

// inTx runs fn in its own transaction
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// placeholders returns "?,?,?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// Candidate operations

// upsertCandidateWithQuerier writes the candidate row and replaces its facts
func (s *SQLiteStorage) upsertCandidateWithQuerier(ctx context.Context, q querier, candidate *Candidate) error {
	if candidate.ID == "" || candidate.Name == "" {
		return fmt.Errorf("%w: candidate requires id and name", ErrInvalidEntity)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO candidates (id, name, vendor, category, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			vendor = excluded.vendor,
			category = excluded.category,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query,
		candidate.ID, candidate.Name, candidate.Vendor, candidate.Category,
		candidate.IsActive, now, now); err != nil {
		return fmt.Errorf("failed to upsert candidate: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM candidate_facts WHERE candidate_id = ?", candidate.ID); err != nil {
		return fmt.Errorf("failed to clear facts: %w", err)
	}

	for _, f := range candidate.Facts {
		if f.Type == "" {
			return fmt.Errorf("%w: fact requires a type", ErrInvalidEntity)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO candidate_facts (candidate_id, fact_type, fact_value, evidence_url, confidence)
			VALUES (?, ?, ?, ?, ?)
		`, candidate.ID, f.Type, f.Value, f.EvidenceURL, f.Confidence)
		if err != nil {
			return fmt.Errorf("failed to insert fact %s: %w", f.Type, err)
		}
	}

	candidate.UpdatedAt = now
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) UpsertCandidate(ctx context.Context, candidate *Candidate) error {
	return s.inTx(ctx, func(q querier) error {
		return s.upsertCandidateWithQuerier(ctx, q, candidate)
	})
}

func (s *SQLiteStorage) deleteCandidateWithQuerier(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM candidates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteCandidate(ctx context.Context, id string) error {
	return s.deleteCandidateWithQuerier(ctx, s.db, id)
}

func (s *SQLiteStorage) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	candidates, err := s.ListCandidates(ctx, ListOptions{IDs: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	return candidates[0], nil
}

// ListCandidates returns candidates ordered by id, with facts attached
func (s *SQLiteStorage) ListCandidates(ctx context.Context, opts ListOptions) ([]*Candidate, error) {
	query := `
		SELECT id, name, COALESCE(vendor, ''), category, is_active, created_at, updated_at
		FROM candidates
		WHERE 1 = 1
	`
	var args []any

	if opts.ActiveOnly {
		query += " AND is_active = 1"
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}
	if len(opts.IDs) > 0 {
		query += " AND id IN (" + placeholders(len(opts.IDs)) + ")"
		for _, id := range opts.IDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []*Candidate
	byID := make(map[string]*Candidate)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Vendor, &c.Category, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	if len(candidates) == 0 {
		return candidates, nil
	}

	if err := s.attachFacts(ctx, byID); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *SQLiteStorage) attachFacts(ctx context.Context, byID map[string]*Candidate) error {
	args := make([]any, 0, len(byID))
	for id := range byID {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_id, fact_type, fact_value, COALESCE(evidence_url, ''), COALESCE(confidence, '')
		FROM candidate_facts
		WHERE candidate_id IN (`+placeholders(len(args))+`)
		ORDER BY candidate_id, id
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to load facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.CandidateID, &f.Type, &f.Value, &f.EvidenceURL, &f.Confidence); err != nil {
			return fmt.Errorf("failed to scan fact: %w", err)
		}
		if c, ok := byID[f.CandidateID]; ok {
			c.Facts = append(c.Facts, f)
		}
	}
	return rows.Err()
}

// Chunk operations

func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	if chunk.ID == "" || chunk.CandidateID == "" || chunk.Content == "" {
		return fmt.Errorf("%w: chunk requires id, candidate and content", ErrInvalidEntity)
	}
	if chunk.ContentHash == ([32]byte{}) {
		chunk.ContentHash = sha256.Sum256([]byte(chunk.Content))
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO chunks (id, candidate_id, doc_type, content, source_url, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			candidate_id = excluded.candidate_id,
			doc_type = excluded.doc_type,
			content = excluded.content,
			source_url = excluded.source_url,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		chunk.ID, chunk.CandidateID, chunk.DocType, chunk.Content,
		chunk.SourceURL, chunk.ContentHash[:], now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	chunk.UpdatedAt = now
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.db, chunk)
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	query := `
		SELECT id, candidate_id, doc_type, content, COALESCE(source_url, ''), content_hash, created_at, updated_at
		FROM chunks
		WHERE id = ?
	`
	var c Chunk
	var hash []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.CandidateID, &c.DocType, &c.Content, &c.SourceURL, &hash, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(c.ContentHash[:], hash)
	return &c, nil
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	if embedding.ChunkID == "" || len(embedding.Vector) == 0 {
		return fmt.Errorf("%w: embedding requires chunk id and vector", ErrInvalidEntity)
	}

	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	_, err := q.ExecContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID string) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var e Embedding
	err := s.db.QueryRowContext(ctx, query, chunkID).Scan(
		&e.ID, &e.ChunkID, &e.Vector, &e.Dimension, &e.Provider, &e.Model, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Retrieval operations

// SearchLexical ranks chunks of the given candidates with FTS5 BM25.
// RawScore is the negated bm25 value, so higher is better.
func (s *SQLiteStorage) SearchLexical(ctx context.Context, query string, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	return searchLexical(ctx, s.db, query, candidateIDs, maxResults)
}

// SearchVector ranks chunks of the given candidates by cosine distance.
// RawScore is the distance in [0, 2], lower is better.
func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	return searchVector(ctx, s.db, vector, candidateIDs, maxResults)
}

// Status operations

// Revision returns the write counter maintained by chunk and embedding triggers
func (s *SQLiteStorage) Revision(ctx context.Context) (string, error) {
	var rev int64
	if err := s.db.QueryRowContext(ctx, "SELECT revision FROM catalog_revision WHERE id = 1").Scan(&rev); err != nil {
		return "", fmt.Errorf("failed to read catalog revision: %w", err)
	}
	return strconv.FormatInt(rev, 10), nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{BuildMode: BuildMode}

	if err := s.db.PingContext(ctx); err != nil {
		return status, nil
	}
	status.Health.DatabaseAccessible = true

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM candidates", &status.CandidatesCount},
		{"SELECT COUNT(*) FROM candidates WHERE is_active = 1", &status.ActiveCount},
		{"SELECT COUNT(*) FROM candidate_facts", &status.FactsCount},
		{"SELECT COUNT(*) FROM chunks", &status.ChunksCount},
		{"SELECT COUNT(*) FROM embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	var ftsRows int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks_fts").Scan(&ftsRows); err == nil {
		status.Health.FTSIndexBuilt = ftsRows == status.ChunksCount
	}
	status.Health.EmbeddingsAvailable = status.EmbeddingsCount > 0

	return status, nil
}
