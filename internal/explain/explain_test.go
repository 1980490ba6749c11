package explain

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/saasrank/internal/scoring"
	"github.com/dshills/saasrank/pkg/types"
)

func chunks(n int) []types.MatchedChunk {
	out := make([]types.MatchedChunk, n)
	for i := range out {
		out[i] = types.MatchedChunk{
			ContentID:     types.ContentID(fmt.Sprintf("k%d", i)),
			CandidateID:   "c1",
			Content:       fmt.Sprintf("passage %d", i),
			CombinedScore: 1 - float64(i)/10,
		}
	}
	return out
}

func TestExplainSummary(t *testing.T) {
	g := New()
	facts := []types.Fact{
		{Type: types.FactSSO, Value: "supported"},
		{Type: types.FactAuditLog, Value: "supported"},
	}

	tests := []struct {
		name        string
		category    bool
		constraints types.Constraints
		chunks      int
		want        string
	}{
		{
			name:     "category only",
			category: true,
			want:     "Matches the requested business category.",
		},
		{
			name:        "mismatch with facts and passages",
			constraints: types.Constraints{RequireSSO: true, RequireAuditLog: true},
			chunks:      3,
			want:        "Different category, but offers capabilities that match the requirements. Satisfies 2 required conditions. Document analysis found 3 related passages.",
		},
		{
			name:        "singular",
			category:    true,
			constraints: types.Constraints{RequireSSO: true},
			chunks:      1,
			want:        "Matches the requested business category. Satisfies 1 required condition. Document analysis found 1 related passage.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := g.Explain(tt.category, scoring.EvaluateFacts(facts, tt.constraints), chunks(tt.chunks))
			assert.Equal(t, tt.want, exp.Summary)
			assert.Equal(t, tt.category, exp.CategoryMatch)
		})
	}
}

func TestMatchedFactsOnlyRequiredAndSatisfied(t *testing.T) {
	facts := []types.Fact{
		{Type: types.FactSSO, Value: "supported"},
		{Type: types.FactAuditLog, Value: "unsupported"},
		{Type: types.FactDataResidency, Value: "japan"},
	}

	// SSO is supported but not required, audit log is required but unsupported.
	eval := scoring.EvaluateFacts(facts, types.Constraints{RequireAuditLog: true, DataResidency: "japan"})
	matched := MatchedFacts(eval)

	require.Len(t, matched, 1)
	assert.Equal(t, types.FactDataResidency, matched[0].Type)
	assert.Equal(t, "japan", matched[0].Value)
	assert.Contains(t, matched[0].Reason, "japan")
	assert.Len(t, matched, eval.MatchedRequiredCount())
}

func TestExplainCapsChunksAndHighlights(t *testing.T) {
	exp := New().Explain(false, scoring.FactEvaluation{}, chunks(8))
	assert.Len(t, exp.MatchedChunks, DefaultMaxMatchedChunks)
	assert.Len(t, exp.Highlights, DefaultMaxHighlights)
	assert.Equal(t, "passage 0", exp.Highlights[0])

	exp = New(WithMaxHighlights(2)).Explain(false, scoring.FactEvaluation{}, chunks(3))
	assert.Len(t, exp.Highlights, 2)
	assert.Len(t, exp.MatchedChunks, 3)

	exp = New().Explain(false, scoring.FactEvaluation{}, nil)
	assert.Nil(t, exp.MatchedChunks)
	assert.Nil(t, exp.Highlights)
	assert.NotNil(t, exp.MatchedFacts)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("  short \n text ", 100))

	long := strings.Repeat("a", 150)
	got := Excerpt(long, 100)
	assert.Equal(t, strings.Repeat("a", 100)+"...", got)

	// Multi-byte text is truncated by runes, never mid-character.
	jp := strings.Repeat("会計", 60)
	got = Excerpt(jp, 100)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 103, utf8.RuneCountInString(got))

	// Decomposed "é" composes to a single rune before counting.
	assert.Equal(t, "caf\u00e9", Excerpt("cafe\u0301", 4))

	assert.Equal(t, strings.Repeat("x", 100), Excerpt(strings.Repeat("x", 100), 100))
}

func TestExplainDeterministic(t *testing.T) {
	g := New(WithHighlightLength(10))
	eval := scoring.EvaluateFacts([]types.Fact{{Type: types.FactSSO, Value: "supported"}}, types.Constraints{RequireSSO: true})

	first, err := json.Marshal(g.Explain(true, eval, chunks(4)))
	require.NoError(t, err)
	second, err := json.Marshal(g.Explain(true, eval, chunks(4)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
