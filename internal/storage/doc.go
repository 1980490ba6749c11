// Package storage provides SQLite-based persistence for the product catalog.
//
// The storage layer manages:
//   - Candidate products and their structured facts
//   - Document chunks attached to candidates
//   - Vector embeddings for chunks
//   - The FTS5 full-text index over chunk content
//
// # Database Schema
//
// Tables:
//   - candidates: Catalog products (name, vendor, category, active flag)
//   - candidate_facts: One row per (candidate, fact type)
//   - chunks: Document excerpts keyed by a stable text id
//   - embeddings: Serialized float32 vectors for chunks
//   - chunks_fts: FTS5 trigram index kept in sync by triggers
//   - catalog_revision: Counter bumped by chunk and embedding writes
//
// # Retrieval
//
// Both retrieval channels are restricted to an explicit candidate set:
//
//	hits, err := db.SearchLexical(ctx, "single sign-on audit", ids, 30)
//	hits, err := db.SearchVector(ctx, queryVec, ids, 30)
//
// Query terms of three or more characters match through the trigram index.
// Two-character non-ASCII terms (会計, 購買) fall back to a substring match.
// Lexical hits carry the negated BM25 value plus a fixed amount per matched
// short term (higher is better). Vector hits
// carry cosine distance in [0, 2] (lower is better). Normalization happens
// in the scoring package.
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertCandidate(ctx, candidate)
//	_ = tx.UpsertChunk(ctx, chunk)
//	_ = tx.UpsertEmbedding(ctx, embedding)
//
//	return tx.Commit()
//
// # Build Modes
//
// With CGO and the sqlite_vec tag the mattn driver is used and cosine
// distance is computed in SQL. The default pure Go build uses
// modernc.org/sqlite and computes distances in Go.
package storage
