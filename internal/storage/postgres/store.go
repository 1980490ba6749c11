package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/pgvector/pgvector-go"

	"github.com/dshills/saasrank/internal/storage"
	"github.com/dshills/saasrank/pkg/types"
)

const (
	// DefaultTextSearchConfig is the regconfig passed to to_tsvector
	DefaultTextSearchConfig = "simple"

	// BuildMode is reported by GetStatus
	BuildMode = "postgres"
)

// Store reads the catalog from PostgreSQL. Expected tables:
//
//	candidates(id, name, vendor, category, is_active, created_at, updated_at)
//	candidate_facts(candidate_id, fact_type, fact_value, evidence_url, confidence)
//	chunks(id, candidate_id, doc_type, content, source_url, embedding vector)
type Store struct {
	client   Client
	tsConfig string
}

// Option configures a Store
type Option func(*Store)

// WithTextSearchConfig sets the text search configuration, e.g. "english"
func WithTextSearchConfig(cfg string) Option {
	return func(s *Store) {
		if cfg != "" {
			s.tsConfig = cfg
		}
	}
}

// NewStore creates a store over client
func NewStore(client Client, opts ...Option) *Store {
	s := &Store{client: client, tsConfig: DefaultTextSearchConfig}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// positional returns "$from,$from+1,..." for n arguments
func positional(from, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(from + i))
	}
	return b.String()
}

func scanHits(hits *[]types.RetrievalHit) HandlerFunc {
	return func(rows *sql.Rows) error {
		for rows.Next() {
			var h types.RetrievalHit
			if err := rows.Scan(&h.ContentID, &h.CandidateID, &h.DocType, &h.Content, &h.SourceURL, &h.RawScore); err != nil {
				return fmt.Errorf("scan hit: %w", err)
			}
			*hits = append(*hits, h)
		}
		return nil
	}
}

// anyTermQuery reduces free text to distinct letter and digit terms joined
// by "or", so websearch_to_tsquery matches chunks containing any of them.
// The word "or" itself is dropped since it would parse as the operator.
func anyTermQuery(query string) string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if w == "or" || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return strings.Join(terms, " or ")
}

// SearchLexical ranks chunks matching any query term with ts_rank; higher
// is better.
func (s *Store) SearchLexical(ctx context.Context, query string, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	tsQuery := anyTermQuery(query)
	if tsQuery == "" || len(candidateIDs) == 0 || maxResults <= 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT id, candidate_id, doc_type, content, COALESCE(source_url, ''),
			ts_rank(to_tsvector($1::regconfig, content), websearch_to_tsquery($1::regconfig, $2)) AS rank
		FROM chunks
		WHERE to_tsvector($1::regconfig, content) @@ websearch_to_tsquery($1::regconfig, $2)
		AND candidate_id IN (` + positional(3, len(candidateIDs)) + `)
		ORDER BY rank DESC, id ASC
		LIMIT $` + strconv.Itoa(3+len(candidateIDs))

	args := make([]any, 0, len(candidateIDs)+3)
	args = append(args, s.tsConfig, tsQuery)
	args = appendIDs(args, candidateIDs)
	args = append(args, maxResults)

	hits := make([]types.RetrievalHit, 0)
	if err := s.client.Query(ctx, scanHits(&hits), sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return hits, nil
}

// SearchVector ranks chunks by pgvector cosine distance; lower is better.
func (s *Store) SearchVector(ctx context.Context, vector []float32, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	if len(vector) == 0 || len(candidateIDs) == 0 || maxResults <= 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT id, candidate_id, doc_type, content, COALESCE(source_url, ''),
			embedding <=> $1 AS distance
		FROM chunks
		WHERE embedding IS NOT NULL
		AND candidate_id IN (` + positional(2, len(candidateIDs)) + `)
		ORDER BY distance ASC, id ASC
		LIMIT $` + strconv.Itoa(2+len(candidateIDs))

	args := make([]any, 0, len(candidateIDs)+2)
	args = append(args, pgvector.NewVector(vector))
	args = appendIDs(args, candidateIDs)
	args = append(args, maxResults)

	hits := make([]types.RetrievalHit, 0)
	if err := s.client.Query(ctx, scanHits(&hits), sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func appendIDs(args []any, ids []types.CandidateID) []any {
	for _, id := range ids {
		args = append(args, string(id))
	}
	return args
}

// ListCandidates returns candidates ordered by id, with facts attached
func (s *Store) ListCandidates(ctx context.Context, opts storage.ListOptions) ([]*storage.Candidate, error) {
	query := `
		SELECT id, name, COALESCE(vendor, ''), category, is_active, created_at, updated_at
		FROM candidates
		WHERE TRUE`
	var args []any

	if opts.ActiveOnly {
		query += " AND is_active"
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		query += " AND category = $" + strconv.Itoa(len(args))
	}
	if len(opts.IDs) > 0 {
		query += " AND id IN (" + positional(len(args)+1, len(opts.IDs)) + ")"
		for _, id := range opts.IDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY id"

	var candidates []*storage.Candidate
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var c storage.Candidate
			if err := rows.Scan(&c.ID, &c.Name, &c.Vendor, &c.Category, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
				return fmt.Errorf("scan candidate: %w", err)
			}
			candidates = append(candidates, &c)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	byID := make(map[string]*storage.Candidate, len(candidates))
	factArgs := make([]any, 0, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		factArgs = append(factArgs, c.ID)
	}

	factQuery := `
		SELECT candidate_id, fact_type, fact_value, COALESCE(evidence_url, ''), COALESCE(confidence, '')
		FROM candidate_facts
		WHERE candidate_id IN (` + positional(1, len(factArgs)) + `)
		ORDER BY candidate_id, fact_type`

	err = s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var f storage.Fact
			if err := rows.Scan(&f.CandidateID, &f.Type, &f.Value, &f.EvidenceURL, &f.Confidence); err != nil {
				return fmt.Errorf("scan fact: %w", err)
			}
			if c, ok := byID[f.CandidateID]; ok {
				c.Facts = append(c.Facts, f)
			}
		}
		return nil
	}, factQuery, factArgs...)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return candidates, nil
}

// Revision digests chunk ids, content and embeddings. The tables are
// maintained outside this service, so there is no write counter to read.
func (s *Store) Revision(ctx context.Context) (string, error) {
	var rev string
	err := s.client.QueryRow(ctx, []any{&rev}, `
		SELECT md5(COALESCE(string_agg(
			id || ':' || md5(content) || ':' || md5(COALESCE(embedding::text, '')),
			',' ORDER BY id), ''))
		FROM chunks`)
	if err != nil {
		return "", fmt.Errorf("revision: %w", err)
	}
	return rev, nil
}

// GetStatus reports catalog counts. An unreachable database is reported
// through Health rather than as an error.
func (s *Store) GetStatus(ctx context.Context) (*storage.Status, error) {
	status := &storage.Status{BuildMode: BuildMode}
	if err := s.client.Ping(ctx); err != nil {
		return status, nil
	}
	status.Health.DatabaseAccessible = true

	var sizeBytes int64
	err := s.client.QueryRow(ctx, []any{
		&status.CandidatesCount,
		&status.ActiveCount,
		&status.FactsCount,
		&status.ChunksCount,
		&status.EmbeddingsCount,
		&sizeBytes,
	}, `
		SELECT
			(SELECT COUNT(*) FROM candidates),
			(SELECT COUNT(*) FROM candidates WHERE is_active),
			(SELECT COUNT(*) FROM candidate_facts),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL),
			pg_database_size(current_database())`)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	status.DatabaseSizeMB = float64(sizeBytes) / (1024 * 1024)
	status.Health.EmbeddingsAvailable = status.EmbeddingsCount > 0
	// to_tsvector is evaluated at query time, so lexical search is always available
	status.Health.FTSIndexBuilt = true
	return status, nil
}
