package ranker

import (
	"crypto/sha256"
	"encoding/json"
	"slices"
	"time"

	"github.com/dshills/saasrank/pkg/types"
)

// cacheEntry represents a cached response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// cacheKey hashes everything that influences a response: the query, the
// admissible candidates with their facts, the effective top-K and the
// catalog revision. Without a revision, chunk and embedding changes go
// unnoticed until the entry expires.
func cacheKey(req Request, topK int) [32]byte {
	data, _ := json.Marshal(struct {
		Query      types.Query
		Candidates []types.Candidate
		TopK       int
		Revision   string
	}{req.Query, req.Candidates, topK, req.Revision})
	return sha256.Sum256(data)
}

// checkCache returns a copy of a live cached response, or nil
func (r *Ranker) checkCache(req Request, topK int) *Response {
	if r.cache == nil {
		return nil
	}
	key := cacheKey(req, topK)
	now := time.Now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(key)
	if !found {
		r.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(key)
		r.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	r.cacheMu.RUnlock()
	return response
}

// storeInCache saves a deep copy so callers cannot mutate cached state
func (r *Ranker) storeInCache(req Request, topK int, response *Response) {
	if r.cache == nil {
		return
	}
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(r.opts.cacheTTL),
	}

	r.cacheMu.Lock()
	r.cache.Add(cacheKey(req, topK), entry)
	r.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Call it after the catalog changes.
func (r *Ranker) InvalidateCache() {
	if r.cache == nil {
		return
	}
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// CacheLen reports the number of cached responses
func (r *Ranker) CacheLen() int {
	if r.cache == nil {
		return 0
	}
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.cache.Len()
}

func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.RankedCandidate, len(src.Results))
	for i, rc := range src.Results {
		dst.Results[i] = copyRanked(rc)
	}
	return &dst
}

func copyRanked(rc types.RankedCandidate) types.RankedCandidate {
	out := rc
	out.Breakdown.FactContributions = slices.Clone(rc.Breakdown.FactContributions)
	out.Explanation.MatchedFacts = slices.Clone(rc.Explanation.MatchedFacts)
	out.Explanation.MatchedChunks = slices.Clone(rc.Explanation.MatchedChunks)
	out.Explanation.Highlights = slices.Clone(rc.Explanation.Highlights)
	return out
}
