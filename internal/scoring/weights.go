package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Default hybrid policy
const (
	DefaultLexicalWeight   = 0.4
	DefaultVectorWeight    = 0.6
	DefaultRelevanceWeight = 0.5
	DefaultFactMatchWeight = 0.5
	DefaultCategoryBonus   = 10.0
)

// Default rule-based fallback policy
const (
	DefaultRuleBase              = 50.0
	DefaultRuleCategoryBonus     = 30.0
	DefaultRuleRequiredFactBonus = 10.0
	DefaultRuleOptionalFactBonus = 5.0
)

// MaxScore is the upper bound of every final score
const MaxScore = 100.0

const weightTolerance = 1e-9

// ErrInvalidWeights is returned when a weight set does not sum to one
var ErrInvalidWeights = errors.New("invalid scoring weights")

// Weights is the hybrid scoring policy
type Weights struct {
	Lexical       float64 // Share of lexical signal in relevance
	Vector        float64 // Share of vector signal in relevance
	Relevance     float64 // Share of relevance in the final score
	FactMatch     float64 // Share of fact matching in the final score
	CategoryBonus float64 // Points added on category match
}

// DefaultWeights returns the fixed production policy
func DefaultWeights() Weights {
	return Weights{
		Lexical:       DefaultLexicalWeight,
		Vector:        DefaultVectorWeight,
		Relevance:     DefaultRelevanceWeight,
		FactMatch:     DefaultFactMatchWeight,
		CategoryBonus: DefaultCategoryBonus,
	}
}

// Validate checks that both weight pairs are non-negative and sum to one
func (w Weights) Validate() error {
	for _, v := range []float64{w.Lexical, w.Vector, w.Relevance, w.FactMatch, w.CategoryBonus} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: negative weight %v", ErrInvalidWeights, v)
		}
	}
	if math.Abs(w.Lexical+w.Vector-1) > weightTolerance {
		return fmt.Errorf("%w: lexical %v + vector %v != 1", ErrInvalidWeights, w.Lexical, w.Vector)
	}
	if math.Abs(w.Relevance+w.FactMatch-1) > weightTolerance {
		return fmt.Errorf("%w: relevance %v + fact match %v != 1", ErrInvalidWeights, w.Relevance, w.FactMatch)
	}
	return nil
}

// Blend combines lexical and vector scores into one relevance score.
// The same function scores chunks and candidates.
func (w Weights) Blend(lexical, vector float64) float64 {
	// Explicit conversions keep the compiler from fusing multiply-add,
	// so results are identical on every architecture.
	return clampUnit(float64(lexical*w.Lexical) + float64(vector*w.Vector))
}

// HybridBase is the score before the category bonus
func (w Weights) HybridBase(relevance, factMatch float64) float64 {
	return (float64(relevance*w.Relevance) + float64(factMatch*w.FactMatch)) * MaxScore
}

// FinalScore computes the 0-100 hybrid score
func (w Weights) FinalScore(relevance, factMatch float64, categoryMatch bool) float64 {
	score := w.HybridBase(relevance, factMatch)
	if categoryMatch {
		score += w.CategoryBonus
	}
	return Clamp(score, 0, MaxScore)
}

// RuleWeights is the rule-based fallback policy
type RuleWeights struct {
	Base              float64
	CategoryBonus     float64
	RequiredFactBonus float64
	OptionalFactBonus float64
}

// DefaultRuleWeights returns the fixed fallback policy
func DefaultRuleWeights() RuleWeights {
	return RuleWeights{
		Base:              DefaultRuleBase,
		CategoryBonus:     DefaultRuleCategoryBonus,
		RequiredFactBonus: DefaultRuleRequiredFactBonus,
		OptionalFactBonus: DefaultRuleOptionalFactBonus,
	}
}

// FactPoints returns the bonus a satisfied fact earns
func (rw RuleWeights) FactPoints(fr FactResult) float64 {
	switch {
	case !fr.Satisfied:
		return 0
	case fr.Required:
		return rw.RequiredFactBonus
	default:
		return rw.OptionalFactBonus
	}
}

// Score computes the 0-100 rule-based score
func (rw RuleWeights) Score(eval FactEvaluation, categoryMatch bool) float64 {
	score := rw.Base
	if categoryMatch {
		score += rw.CategoryBonus
	}
	for _, fr := range eval.Results {
		score += rw.FactPoints(fr)
	}
	return Clamp(score, 0, MaxScore)
}
