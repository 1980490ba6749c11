// Package types provides shared type definitions for the saasrank engine.
//
// These types flow through every stage of a ranking invocation: retrieval
// channels return RetrievalHit values, the normalizer turns them into
// NormalizedHit values, the aggregator merges them into MatchedChunk and
// CandidateSignal values, and the scorer and explainer produce a
// RankedCandidate per admissible Candidate.
//
// # Identifiers
//
// CandidateID and ContentID are distinct named types so that merge keys
// cannot be confused:
//
//	key := struct {
//	    Candidate types.CandidateID
//	    Content   types.ContentID
//	}{hit.CandidateID, hit.ContentID}
//
// # Score ranges
//
// Every normalized, combined, lexical, vector and relevance score lies in
// [0, 1]. Final scores lie in [0, 100]. RankedCandidate.Validate enforces
// these ranges and rejects matched chunks that belong to another candidate:
//
//	if err := ranked.Validate(); err != nil {
//	    return err
//	}
//
// All values are request-scoped. Nothing in this package owns persistent
// state.
package types
