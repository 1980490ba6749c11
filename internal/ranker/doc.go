// Package ranker orchestrates a hybrid ranking request.
//
// A request carries a structured query and the admissible candidate set.
// The ranker derives query text, runs lexical retrieval and
// embedding-then-vector retrieval concurrently, normalizes and aggregates
// hits per candidate, scores every candidate and attaches explanations.
//
// A failed channel contributes zero scores and is reported in
// Response.Degradation. When both channels fail the whole request is
// scored with the rule-based fallback. Only request validation errors and
// cancellation of the caller's context are returned as errors.
//
// Non-degraded responses can be cached in an LRU keyed by the full
// request; cached values are deep copies.
package ranker
