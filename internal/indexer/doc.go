// Package indexer loads a JSON catalog document into the catalog store.
//
// Each candidate is written with its facts and pre-chunked documents in
// one transaction per batch. Chunks are indexed for full-text search by
// the store itself; the indexer adds vector embeddings through the
// configured embedder.
//
// # Basic Usage
//
//	doc, err := indexer.LoadFile("catalog.json")
//	if err != nil {
//	    return err
//	}
//
//	idx := indexer.New(store, emb, indexer.WithLogger(logger))
//	stats, err := idx.IndexCatalog(ctx, doc, nil)
//
// # Incremental Imports
//
// A chunk whose content hash matches the stored row and which already has
// an embedding is not re-embedded. Candidate rows and facts are always
// rewritten, so re-importing a file is idempotent.
//
// # Embedding Failures
//
// Provider errors never abort an import. The affected chunks are stored
// without embeddings, remain searchable by the lexical channel, and are
// reported in Statistics.EmbeddingsFailed and Statistics.ErrorMessages.
//
// # Document Format
//
//	{
//	  "candidates": [
//	    {
//	      "id": "acme-expense",
//	      "name": "Acme Expense",
//	      "vendor": "Acme",
//	      "category": "expense",
//	      "facts": [{"type": "sso", "value": "supported"}],
//	      "chunks": [{"id": "acme-expense-1", "doc_type": "feature", "content": "..."}]
//	    }
//	  ]
//	}
//
// is_active defaults to true. Unknown fields are rejected.
package indexer
