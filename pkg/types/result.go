package types

import "math"

// ScoringMode selects the final-score formula for a whole search
type ScoringMode string

const (
	// ModeHybrid blends retrieval relevance with fact matching
	ModeHybrid ScoringMode = "hybrid"
	// ModeRuleBased is used when no retrieval signal is available at all
	ModeRuleBased ScoringMode = "rule_based"
)

// CandidateSignal is the per-candidate aggregate of retrieval evidence
type CandidateSignal struct {
	CandidateID    CandidateID
	LexicalScore   float64 // Max lexical score across the candidate's chunks
	VectorScore    float64 // Max vector score across the candidate's chunks
	RelevanceScore float64 // Blend of LexicalScore and VectorScore
	Chunks         []MatchedChunk
}

// FactContribution is one constraint's share of the score
type FactContribution struct {
	Type      FactType `json:"type"`
	Required  bool     `json:"required"`
	Satisfied bool     `json:"satisfied"`
	Points    float64  `json:"points"`
}

// ScoreBreakdown decomposes a final score. Every field is computed from
// the inputs, never approximated, so Total can be reconstructed exactly.
type ScoreBreakdown struct {
	Mode              ScoringMode        `json:"mode"`
	BaseScore         float64            `json:"base_score"`
	CategoryMatch     float64            `json:"category_match"`
	FactContributions []FactContribution `json:"fact_contributions,omitempty"`
	FactMatchScore    float64            `json:"fact_match_score"`
	LexicalScore      float64            `json:"bm25_score"`
	VectorScore       float64            `json:"vector_score"`
	RelevanceScore    float64            `json:"relevance_score"`
	Total             float64            `json:"total"`
}

// MatchedFact is a required constraint that the candidate satisfies
type MatchedFact struct {
	Type   FactType `json:"fact_type"`
	Value  string   `json:"value"`
	Reason string   `json:"reason"`
}

// Explanation is the human-readable rationale for a ranked candidate
type Explanation struct {
	MatchedFacts  []MatchedFact  `json:"matched_facts"`
	CategoryMatch bool           `json:"category_match"`
	Summary       string         `json:"summary"`
	MatchedChunks []MatchedChunk `json:"matched_chunks,omitempty"`
	Highlights    []string       `json:"highlights,omitempty"`
}

// RankedCandidate is one entry of the ranking output
type RankedCandidate struct {
	CandidateID CandidateID    `json:"candidate_id"`
	Name        string         `json:"name,omitempty"`
	Vendor      string         `json:"vendor,omitempty"`
	Rank        int            `json:"rank"` // Position in result set (1-based)
	FinalScore  float64        `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Explanation Explanation    `json:"explain"`
}

// Validate checks if the ranked candidate is valid
func (rc *RankedCandidate) Validate() error {
	if rc.CandidateID == "" {
		return ErrInvalidCandidateID
	}

	if rc.Rank < 1 {
		return ErrInvalidRank
	}

	if math.IsNaN(rc.FinalScore) || rc.FinalScore < 0 || rc.FinalScore > 100 {
		return ErrInvalidScore
	}

	if !unitRange(rc.Breakdown.RelevanceScore) || !unitRange(rc.Breakdown.FactMatchScore) {
		return ErrInvalidRelevanceScore
	}

	for i := range rc.Explanation.MatchedChunks {
		if rc.Explanation.MatchedChunks[i].CandidateID != rc.CandidateID {
			return ErrForeignChunk
		}
	}

	return nil
}
