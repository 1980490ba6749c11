// Package aggregate merges normalized lexical and vector hits into
// per-candidate relevance signals.
package aggregate

import (
	"sort"

	"github.com/dshills/saasrank/pkg/types"
)

// DefaultChunksPerCandidate caps the evidence chunks kept per candidate
const DefaultChunksPerCandidate = 3

// BlendFunc combines a lexical and a vector score into one score
type BlendFunc func(lexical, vector float64) float64

// Key identifies a content unit across both channels
type Key struct {
	Candidate types.CandidateID
	Content   types.ContentID
}

// Result is the outcome of one aggregation
type Result struct {
	Signals []types.CandidateSignal // One per admissible candidate, input order
	Merged  int                     // Distinct content units after merging
	Dropped int                     // Hits referencing candidates outside the admissible set
}

// Signal returns the signal for a candidate
func (r Result) Signal(id types.CandidateID) (types.CandidateSignal, bool) {
	for i := range r.Signals {
		if r.Signals[i].CandidateID == id {
			return r.Signals[i], true
		}
	}
	return types.CandidateSignal{}, false
}

// Aggregate merges both channels and rolls them up per candidate.
//
// A content unit present in only one channel scores 0 for the other. A
// candidate's lexical and vector signals are the maxima across all its
// units, computed before the chunk list is truncated. Candidates with no
// hits still get a zero signal. A failed channel is passed as nil.
func Aggregate(lexical, vector []types.NormalizedHit, candidates []types.CandidateID, blend BlendFunc, chunksPerCandidate int) Result {
	if chunksPerCandidate <= 0 {
		chunksPerCandidate = DefaultChunksPerCandidate
	}

	admissible := make(map[types.CandidateID]struct{}, len(candidates))
	for _, id := range candidates {
		admissible[id] = struct{}{}
	}

	merged := make(map[Key]*types.MatchedChunk)
	dropped := 0

	add := func(hit types.NormalizedHit, channel types.Channel) {
		if _, ok := admissible[hit.CandidateID]; !ok {
			dropped++
			return
		}

		key := Key{Candidate: hit.CandidateID, Content: hit.ContentID}
		mc, ok := merged[key]
		if !ok {
			mc = &types.MatchedChunk{
				ContentID:   hit.ContentID,
				CandidateID: hit.CandidateID,
				DocType:     hit.DocType,
				Content:     hit.Content,
				SourceURL:   hit.SourceURL,
			}
			merged[key] = mc
		}

		switch channel {
		case types.ChannelLexical:
			mc.LexicalScore = max(mc.LexicalScore, hit.Score)
		case types.ChannelVector:
			mc.VectorScore = max(mc.VectorScore, hit.Score)
		}
	}

	for _, hit := range lexical {
		add(hit, types.ChannelLexical)
	}
	for _, hit := range vector {
		add(hit, types.ChannelVector)
	}

	grouped := make(map[types.CandidateID][]types.MatchedChunk, len(candidates))
	for _, mc := range merged {
		mc.CombinedScore = blend(mc.LexicalScore, mc.VectorScore)
		grouped[mc.CandidateID] = append(grouped[mc.CandidateID], *mc)
	}

	seen := make(map[types.CandidateID]struct{}, len(candidates))
	signals := make([]types.CandidateSignal, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		chunks := grouped[id]
		signal := types.CandidateSignal{CandidateID: id}
		for _, mc := range chunks {
			signal.LexicalScore = max(signal.LexicalScore, mc.LexicalScore)
			signal.VectorScore = max(signal.VectorScore, mc.VectorScore)
		}
		signal.RelevanceScore = blend(signal.LexicalScore, signal.VectorScore)

		SortChunks(chunks)
		if len(chunks) > chunksPerCandidate {
			chunks = chunks[:chunksPerCandidate]
		}
		signal.Chunks = chunks

		signals = append(signals, signal)
	}

	return Result{
		Signals: signals,
		Merged:  len(merged),
		Dropped: dropped,
	}
}

// SortChunks orders chunks by combined score descending, ties by content ID
func SortChunks(chunks []types.MatchedChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].CombinedScore != chunks[j].CombinedScore {
			return chunks[i].CombinedScore > chunks[j].CombinedScore
		}
		return chunks[i].ContentID < chunks[j].ContentID
	})
}
