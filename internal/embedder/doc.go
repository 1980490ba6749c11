// Package embedder turns query text into vectors for the vector retrieval
// channel.
//
// Three providers are available:
//
//   - jina: Jina AI HTTP API (1024 dimensions)
//   - openai: OpenAI embeddings through the official SDK (1536 dimensions)
//   - local: offline feature hashing (384 dimensions), deterministic and
//     credential-free, used by default and in tests
//
// # Provider Selection
//
// New picks the provider from Config.Provider. When it is empty the
// environment decides:
//
//  1. If SAASRANK_EMBEDDING_PROVIDER is set, use it
//  2. Else if JINA_API_KEY is set, use Jina AI
//  3. Else if OPENAI_API_KEY is set, use OpenAI
//  4. Else fall back to the local provider
//
// Usage:
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 1000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
//
// # Caching and Retries
//
// Every provider consults an LRU cache keyed by model and text before
// calling out, and only cache misses of a batch reach the provider.
// Remote calls are retried with exponential backoff (3 attempts, 100ms
// doubling up to 5s). Retries stop as soon as the context is done.
//
// # Errors
//
// Empty or whitespace-only text fails with ErrEmptyText. Exhausted retries
// fail with ErrProviderFailed. A missing API key fails with
// ErrNoProviderEnabled. The ranker treats all of these as a degraded
// vector channel, never as a failed search.
package embedder
