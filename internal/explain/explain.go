// Package explain derives human-readable rationales from the same signals
// used for scoring.
package explain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/dshills/saasrank/internal/scoring"
	"github.com/dshills/saasrank/pkg/types"
)

const (
	DefaultHighlightLength  = 100
	DefaultMaxHighlights    = 5
	DefaultMaxMatchedChunks = 5

	ellipsis = "..."
)

const (
	summaryCategoryMatch    = "Matches the requested business category."
	summaryCategoryMismatch = "Different category, but offers capabilities that match the requirements."
)

// Generator builds explanations. It holds no mutable state and is safe
// for concurrent use.
type Generator struct {
	highlightLength  int
	maxHighlights    int
	maxMatchedChunks int
}

// Option configures a Generator
type Option func(*Generator)

// WithHighlightLength sets the excerpt length in runes
func WithHighlightLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.highlightLength = n
		}
	}
}

// WithMaxHighlights sets how many excerpts are produced
func WithMaxHighlights(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.maxHighlights = n
		}
	}
}

// New creates a Generator
func New(opts ...Option) *Generator {
	g := &Generator{
		highlightLength:  DefaultHighlightLength,
		maxHighlights:    DefaultMaxHighlights,
		maxMatchedChunks: DefaultMaxMatchedChunks,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Explain produces the rationale for one candidate. chunks must already be
// ordered by combined score. Output is a pure function of the inputs.
func (g *Generator) Explain(categoryMatch bool, eval scoring.FactEvaluation, chunks []types.MatchedChunk) types.Explanation {
	matched := MatchedFacts(eval)

	var summary strings.Builder
	if categoryMatch {
		summary.WriteString(summaryCategoryMatch)
	} else {
		summary.WriteString(summaryCategoryMismatch)
	}
	if n := len(matched); n > 0 {
		fmt.Fprintf(&summary, " Satisfies %d required %s.", n, plural(n, "condition", "conditions"))
	}
	if n := len(chunks); n > 0 {
		fmt.Fprintf(&summary, " Document analysis found %d related %s.", n, plural(n, "passage", "passages"))
	}

	exp := types.Explanation{
		MatchedFacts:  matched,
		CategoryMatch: categoryMatch,
		Summary:       summary.String(),
	}

	if len(chunks) > 0 {
		n := min(len(chunks), g.maxMatchedChunks)
		exp.MatchedChunks = append([]types.MatchedChunk(nil), chunks[:n]...)

		for i := 0; i < len(chunks) && i < g.maxHighlights; i++ {
			exp.Highlights = append(exp.Highlights, Excerpt(chunks[i].Content, g.highlightLength))
		}
	}

	return exp
}

// MatchedFacts lists the facts that are both required and satisfied
func MatchedFacts(eval scoring.FactEvaluation) []types.MatchedFact {
	matched := make([]types.MatchedFact, 0, len(eval.Results))
	for _, fr := range eval.MatchedRequired() {
		matched = append(matched, types.MatchedFact{
			Type:   fr.Type,
			Value:  fr.Actual,
			Reason: reason(fr),
		})
	}
	return matched
}

func reason(fr scoring.FactResult) string {
	switch fr.Type {
	case types.FactSSO:
		return "SSO support matches a required condition."
	case types.FactAuditLog:
		return "Audit log support matches a required condition."
	case types.FactDataResidency:
		return fmt.Sprintf("Data is stored in the required region (%s).", fr.Expected)
	default:
		return fmt.Sprintf("%s matches a required condition.", fr.Type)
	}
}

// Excerpt normalizes text to NFC, collapses whitespace and truncates to
// limit runes, appending an ellipsis when truncated
func Excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	return string(runes[:limit]) + ellipsis
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
