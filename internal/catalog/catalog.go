// Package catalog selects the admissible candidate set for a ranking
// request: active catalog products that satisfy every hard constraint.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/saasrank/internal/scoring"
	"github.com/dshills/saasrank/internal/storage"
	"github.com/dshills/saasrank/pkg/types"
)

// ErrLoad wraps failures to read candidates from the catalog store
var ErrLoad = errors.New("failed to load catalog")

// Source lists catalog candidates. Both storage backends implement it.
type Source interface {
	ListCandidates(ctx context.Context, opts storage.ListOptions) ([]*storage.Candidate, error)
}

// Selection is the outcome of Admissible
type Selection struct {
	Candidates []types.Candidate
	Active     int // Active candidates before constraint filtering
	Excluded   int // Active candidates removed by hard constraints
}

// Admissible loads active candidates from src and keeps those satisfying
// every required constraint. Candidate order follows the source.
func Admissible(ctx context.Context, src Source, c types.Constraints) (Selection, error) {
	rows, err := src.ListCandidates(ctx, storage.ListOptions{ActiveOnly: true})
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	all := storage.ToTypesCandidates(rows)
	kept := FilterAdmissible(all, c)
	return Selection{
		Candidates: kept,
		Active:     len(all),
		Excluded:   len(all) - len(kept),
	}, nil
}

// FilterAdmissible keeps candidates whose facts satisfy every required
// constraint. Category is never a filter; it only earns a score bonus.
func FilterAdmissible(candidates []types.Candidate, c types.Constraints) []types.Candidate {
	out := make([]types.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		eval := scoring.EvaluateFacts(cand.Facts, c)
		if eval.MatchedRequiredCount() == eval.RequiredCount() {
			out = append(out, cand)
		}
	}
	return out
}
