package scoring

import (
	"math"

	"github.com/dshills/saasrank/pkg/types"
)

// LexicalMaxFloor replaces a zero or negative batch maximum so lexical
// normalization never divides by zero
const LexicalMaxFloor = 0.001

// MaxCosineDistance is the upper bound of the cosine distance convention
const MaxCosineDistance = 2.0

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUnit(v float64) float64 {
	return Clamp(v, 0, 1)
}

// NormalizeLexical scales a raw lexical rank against the batch maximum.
// The lexical scale is self-relative per query.
func NormalizeLexical(raw, maxRawInBatch float64) float64 {
	if maxRawInBatch <= 0 || math.IsNaN(maxRawInBatch) {
		maxRawInBatch = LexicalMaxFloor
	}
	return clampUnit(raw / maxRawInBatch)
}

// MaxLexicalScore returns the largest raw rank in hits, never below
// LexicalMaxFloor. An empty batch yields the floor.
func MaxLexicalScore(hits []types.RetrievalHit) float64 {
	maxRaw := LexicalMaxFloor
	for i := range hits {
		if hits[i].RawScore > maxRaw {
			maxRaw = hits[i].RawScore
		}
	}
	return maxRaw
}

// DistanceToSimilarity converts a cosine distance in [0, 2] to a
// similarity in [0, 1]. Distances beyond 1 are clamped to 0.
func DistanceToSimilarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return clampUnit(1 - distance)
}

// NormalizeLexicalHits normalizes a whole lexical batch
func NormalizeLexicalHits(hits []types.RetrievalHit) []types.NormalizedHit {
	if len(hits) == 0 {
		return nil
	}

	maxRaw := MaxLexicalScore(hits)
	out := make([]types.NormalizedHit, len(hits))
	for i := range hits {
		out[i] = types.NewNormalizedHit(hits[i], NormalizeLexical(hits[i].RawScore, maxRaw))
	}
	return out
}

// NormalizeVectorHits converts a vector batch from distances to similarities
func NormalizeVectorHits(hits []types.RetrievalHit) []types.NormalizedHit {
	if len(hits) == 0 {
		return nil
	}

	out := make([]types.NormalizedHit, len(hits))
	for i := range hits {
		out[i] = types.NewNormalizedHit(hits[i], DistanceToSimilarity(hits[i].RawScore))
	}
	return out
}
