package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/saasrank/pkg/types"
)

// searchVector performs vector similarity search restricted to candidateIDs
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, candidateIDs []types.CandidateID, limit int) ([]types.RetrievalHit, error) {
	if len(candidateIDs) == 0 || len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, candidateIDs, limit)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, queryVector, candidateIDs, limit)
}

// searchVectorOptimized lets sqlite-vec compute cosine distance in SQL
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, candidateIDs []types.CandidateID, limit int) ([]types.RetrievalHit, error) {
	query := `
		SELECT
			c.id, c.candidate_id, c.doc_type, c.content, COALESCE(c.source_url, ''),
			vec_distance_cosine(e.vector, ?) AS distance
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE c.candidate_id IN (` + placeholders(len(candidateIDs)) + `)
		AND e.dimension = ?
		ORDER BY distance ASC, c.id ASC
		LIMIT ?
	`
	args := make([]any, 0, len(candidateIDs)+3)
	args = append(args, serializeVector(queryVector))
	args = appendCandidateArgs(args, candidateIDs)
	args = append(args, len(queryVector), limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]types.RetrievalHit, 0, limit)
	for rows.Next() {
		var hit types.RetrievalHit
		if err := rows.Scan(&hit.ContentID, &hit.CandidateID, &hit.DocType, &hit.Content, &hit.SourceURL, &hit.RawScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchVectorFallback computes cosine distance in Go. Used by purego builds.
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, candidateIDs []types.CandidateID, limit int) ([]types.RetrievalHit, error) {
	query := `
		SELECT c.id, c.candidate_id, c.doc_type, c.content, COALESCE(c.source_url, ''), e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE c.candidate_id IN (` + placeholders(len(candidateIDs)) + `)
	`
	args := appendCandidateArgs(make([]any, 0, len(candidateIDs)), candidateIDs)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits, err := computeDistances(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortByDistance(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// searchLexical performs BM25 full-text search using FTS5
func searchLexical(ctx context.Context, db *sql.DB, query string, candidateIDs []types.CandidateID, limit int) ([]types.RetrievalHit, error) {
	if len(candidateIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	terms := parseLexicalQuery(query)
	if terms.empty() {
		return nil, nil
	}

	sqlQuery, args := buildLexicalQuery(terms, candidateIDs, limit)
	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]types.RetrievalHit, 0)
	for rows.Next() {
		var hit types.RetrievalHit
		if err := rows.Scan(&hit.ContentID, &hit.CandidateID, &hit.DocType, &hit.Content, &hit.SourceURL, &hit.RawScore); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Helper functions

func appendCandidateArgs(args []any, candidateIDs []types.CandidateID) []any {
	for _, id := range candidateIDs {
		args = append(args, string(id))
	}
	return args
}

// computeDistances scans chunk rows and computes cosine distance to queryVector
func computeDistances(rows *sql.Rows, queryVector []float32) ([]types.RetrievalHit, error) {
	hits := make([]types.RetrievalHit, 0, 256)

	for rows.Next() {
		var hit types.RetrievalHit
		var vectorBlob []byte
		if err := rows.Scan(&hit.ContentID, &hit.CandidateID, &hit.DocType, &hit.Content, &hit.SourceURL, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		hit.RawScore = cosineDistance(queryVector, vector)
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// sortByDistance orders hits by ascending distance, ties by content ID
func sortByDistance(hits []types.RetrievalHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].RawScore != hits[j].RawScore {
			return hits[i].RawScore < hits[j].RawScore
		}
		return hits[i].ContentID < hits[j].ContentID
	})
}

const (
	// minTrigramRunes is the shortest term the trigram index can match
	minTrigramRunes = 3

	// shortTermScore is added to a chunk's rank per matched short term
	shortTermScore = 1.0
)

// lexicalTerms is free text split by how each term is matched
type lexicalTerms struct {
	match string   // FTS5 expression of quoted terms joined by OR
	short []string // two-rune non-ASCII terms, matched by substring
}

func (t lexicalTerms) empty() bool {
	return t.match == "" && len(t.short) == 0
}

// parseLexicalQuery reduces free text to letter and digit terms, so FTS5
// operators and syntax characters in user input are never interpreted.
// Terms of three or more runes go to the trigram index. Two-rune terms are
// kept only when they contain non-ASCII characters, which covers Japanese
// words like 会計. Shorter ASCII words and single runes are dropped.
func parseLexicalQuery(query string) lexicalTerms {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var terms lexicalTerms
	seen := make(map[string]bool, len(words))
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true

		switch n := utf8.RuneCountInString(w); {
		case n >= minTrigramRunes:
			quoted = append(quoted, `"`+w+`"`)
		case n == 2 && n != len(w):
			terms.short = append(terms.short, w)
		}
	}
	terms.match = strings.Join(quoted, " OR ")
	return terms
}

// buildLexicalQuery ranks chunks of the given candidates that match any
// term. Trigram matches score by negated bm25() (lower-is-better in FTS5);
// each short term found as a substring adds shortTermScore.
func buildLexicalQuery(terms lexicalTerms, candidateIDs []types.CandidateID, limit int) (string, []any) {
	var with, join string
	score := "0"
	var conds []string
	var matchArgs, scoreArgs, condArgs []any

	if terms.match != "" {
		// Materialized so bm25() runs in the query that owns the MATCH
		with = `
		WITH f AS MATERIALIZED (
			SELECT rowid, -bm25(chunks_fts) AS score
			FROM chunks_fts
			WHERE chunks_fts MATCH ?
		)`
		join = "LEFT JOIN f ON f.rowid = c.seq"
		score = "COALESCE(f.score, 0)"
		matchArgs = append(matchArgs, terms.match)
		conds = append(conds, "f.rowid IS NOT NULL")
	}

	if len(terms.short) > 0 {
		likes := make([]string, len(terms.short))
		for i, term := range terms.short {
			likes[i] = "(c.content LIKE ?)"
			pattern := "%" + term + "%"
			scoreArgs = append(scoreArgs, pattern)
			condArgs = append(condArgs, pattern)
		}
		score += " + (" + strings.Join(likes, " + ") + ") * ?"
		scoreArgs = append(scoreArgs, shortTermScore)
		conds = append(conds, likes...)
	}

	sqlQuery := with + `
		SELECT
			c.id, c.candidate_id, c.doc_type, c.content, COALESCE(c.source_url, ''),
			` + score + ` AS score
		FROM chunks c
		` + join + `
		WHERE c.candidate_id IN (` + placeholders(len(candidateIDs)) + `)
		AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY score DESC, c.id ASC
		LIMIT ?
	`

	args := make([]any, 0, len(matchArgs)+len(scoreArgs)+len(candidateIDs)+len(condArgs)+1)
	args = append(args, matchArgs...)
	args = append(args, scoreArgs...)
	args = appendCandidateArgs(args, candidateIDs)
	args = append(args, condArgs...)
	args = append(args, limit)
	return sqlQuery, args
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineDistance returns 1 - cosine similarity, in [0, 2].
// A zero vector is treated as orthogonal to everything.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	cos := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(2, 1-cos))
}

// SerializeVector encodes a vector in the on-disk embedding format
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes the on-disk embedding format
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineDistance is exported for the import tooling and tests
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, b)
}
