package scoring

import (
	"fmt"

	"github.com/dshills/saasrank/pkg/types"
)

// Input is everything the scorer needs for one candidate
type Input struct {
	CategoryMatch bool
	Signal        types.CandidateSignal
	Facts         FactEvaluation
}

// Scorer computes final scores. The formula branch is chosen by the
// caller once per search, never per candidate.
type Scorer struct {
	weights Weights
	rules   RuleWeights
}

// NewScorer creates a scorer with explicit policies
func NewScorer(w Weights, rw RuleWeights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if rw.Base < 0 || rw.CategoryBonus < 0 || rw.RequiredFactBonus < 0 || rw.OptionalFactBonus < 0 {
		return nil, fmt.Errorf("%w: negative rule weight", ErrInvalidWeights)
	}
	return &Scorer{weights: w, rules: rw}, nil
}

// DefaultScorer returns a scorer with the production policies
func DefaultScorer() *Scorer {
	return &Scorer{weights: DefaultWeights(), rules: DefaultRuleWeights()}
}

// Weights returns the hybrid policy, used by the aggregator for chunk blending
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score produces the breakdown for one candidate in the given mode
func (s *Scorer) Score(mode types.ScoringMode, in Input) types.ScoreBreakdown {
	if mode == types.ModeRuleBased {
		return s.ruleBased(in)
	}
	return s.hybrid(in)
}

func (s *Scorer) hybrid(in Input) types.ScoreBreakdown {
	factMatch := in.Facts.MatchScore()
	relevance := clampUnit(in.Signal.RelevanceScore)

	var category float64
	if in.CategoryMatch {
		category = s.weights.CategoryBonus
	}

	required := in.Facts.RequiredCount()
	contributions := make([]types.FactContribution, 0, len(in.Facts.Results))
	for _, fr := range in.Facts.Results {
		var points float64
		if fr.Required && fr.Satisfied {
			points = s.weights.FactMatch * MaxScore / float64(required)
		}
		contributions = append(contributions, types.FactContribution{
			Type:      fr.Type,
			Required:  fr.Required,
			Satisfied: fr.Satisfied,
			Points:    points,
		})
	}

	return types.ScoreBreakdown{
		Mode:              types.ModeHybrid,
		BaseScore:         s.weights.HybridBase(relevance, factMatch),
		CategoryMatch:     category,
		FactContributions: contributions,
		FactMatchScore:    factMatch,
		LexicalScore:      clampUnit(in.Signal.LexicalScore),
		VectorScore:       clampUnit(in.Signal.VectorScore),
		RelevanceScore:    relevance,
		Total:             s.weights.FinalScore(relevance, factMatch, in.CategoryMatch),
	}
}

func (s *Scorer) ruleBased(in Input) types.ScoreBreakdown {
	var category float64
	if in.CategoryMatch {
		category = s.rules.CategoryBonus
	}

	contributions := make([]types.FactContribution, 0, len(in.Facts.Results))
	for _, fr := range in.Facts.Results {
		contributions = append(contributions, types.FactContribution{
			Type:      fr.Type,
			Required:  fr.Required,
			Satisfied: fr.Satisfied,
			Points:    s.rules.FactPoints(fr),
		})
	}

	return types.ScoreBreakdown{
		Mode:              types.ModeRuleBased,
		BaseScore:         s.rules.Base,
		CategoryMatch:     category,
		FactContributions: contributions,
		FactMatchScore:    in.Facts.MatchScore(),
		Total:             s.rules.Score(in.Facts, in.CategoryMatch),
	}
}

// CategoryMatches reports whether a candidate belongs to the requested
// category. An empty requested category never matches.
func CategoryMatches(candidate types.Category, requested types.Category) bool {
	return requested != "" && candidate == requested
}
