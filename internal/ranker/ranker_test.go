package ranker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/scoring"
	"github.com/dshills/saasrank/pkg/types"
)

type lexicalFunc func(ctx context.Context, query string, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error)

func (f lexicalFunc) SearchLexical(ctx context.Context, query string, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	return f(ctx, query, ids, maxResults)
}

type vectorFunc func(ctx context.Context, vector []float32, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error)

func (f vectorFunc) SearchVector(ctx context.Context, vector []float32, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	return f(ctx, vector, ids, maxResults)
}

func staticLexical(hits []types.RetrievalHit, err error) lexicalFunc {
	return func(context.Context, string, []types.CandidateID, int) ([]types.RetrievalHit, error) {
		return hits, err
	}
}

func staticVector(hits []types.RetrievalHit, err error) vectorFunc {
	return func(context.Context, []float32, []types.CandidateID, int) ([]types.RetrievalHit, error) {
		return hits, err
	}
}

// stubEmbedder returns a fixed vector or a fixed error
type stubEmbedder struct {
	err error
}

func (s stubEmbedder) GenerateEmbedding(_ context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &embedder.Embedding{Vector: []float32{1, 0}, Dimension: 2, Provider: "stub", Model: "stub"}, nil
}

func (s stubEmbedder) GenerateBatch(context.Context, embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not implemented")
}

func (s stubEmbedder) Dimension() int   { return 2 }
func (s stubEmbedder) Provider() string { return "stub" }
func (s stubEmbedder) Model() string    { return "stub" }
func (s stubEmbedder) Close() error     { return nil }

func hit(content, candidate string, raw float64) types.RetrievalHit {
	return types.RetrievalHit{
		ContentID:   types.ContentID(content),
		CandidateID: types.CandidateID(candidate),
		DocType:     "feature",
		Content:     "content of " + content,
		RawScore:    raw,
	}
}

func testCandidates() []types.Candidate {
	return []types.Candidate{
		{ID: "a", Name: "Alpha", Category: types.CategoryInvoice, Facts: []types.Fact{
			{Type: types.FactSSO, Value: types.FactValueSupported},
		}},
		{ID: "b", Name: "Beta", Category: types.CategoryInvoice, Facts: []types.Fact{
			{Type: types.FactAuditLog, Value: types.FactValueSupported},
		}},
		{ID: "c", Name: "Gamma", Category: types.CategoryAccounting},
	}
}

func defaultLexicalHits() []types.RetrievalHit {
	return []types.RetrievalHit{hit("a-1", "a", 2.0), hit("b-1", "b", 1.0)}
}

func defaultVectorHits() []types.RetrievalHit {
	return []types.RetrievalHit{hit("a-1", "a", 0.2), hit("c-1", "c", 0.5)}
}

func newTestRanker(t *testing.T, lex LexicalRetriever, vec VectorRetriever, emb embedder.Embedder, opts ...Option) *Ranker {
	t.Helper()
	r, err := New(lex, vec, emb, opts...)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoRetrievers)

	bad := scoring.DefaultWeights()
	bad.Lexical = -1
	_, err = New(staticLexical(nil, nil), nil, nil, WithWeights(bad))
	assert.ErrorIs(t, err, scoring.ErrInvalidWeights)

	r, err := New(staticLexical(nil, nil), nil, nil, WithCache(0, 0))
	require.NoError(t, err)
	assert.Nil(t, r.cache)
	assert.Zero(t, r.CacheLen())
}

func TestRank_Hybrid(t *testing.T) {
	var gotQuery string
	var gotMax int
	lex := lexicalFunc(func(_ context.Context, q string, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
		gotQuery, gotMax = q, maxResults
		assert.Equal(t, []types.CandidateID{"a", "b", "c"}, ids)
		return defaultLexicalHits(), nil
	})
	r := newTestRanker(t, lex, staticVector(defaultVectorHits(), nil), stubEmbedder{})

	resp, err := r.Rank(context.Background(), Request{
		Query:      types.Query{Category: types.CategoryInvoice, Problems: []string{"手作業"}},
		Candidates: testCandidates(),
	})
	require.NoError(t, err)

	assert.Equal(t, "請求書 請求管理 手作業", gotQuery)
	assert.Equal(t, 9, gotMax)
	assert.Equal(t, types.ModeHybrid, resp.Mode)
	assert.False(t, resp.Degradation.Degraded())
	assert.Equal(t, 3, resp.TotalCandidates)
	assert.Equal(t, 2, resp.LexicalHits)
	assert.Equal(t, 2, resp.VectorHits)
	require.Len(t, resp.Results, 3)

	ids := []types.CandidateID{resp.Results[0].CandidateID, resp.Results[1].CandidateID, resp.Results[2].CandidateID}
	assert.Equal(t, []types.CandidateID{"a", "b", "c"}, ids)

	// a: relevance 0.4*1 + 0.6*0.8 = 0.88, (0.44 + 0.5) * 100 + 10 clamps to 100
	a := resp.Results[0]
	assert.Equal(t, 1, a.Rank)
	assert.Equal(t, "Alpha", a.Name)
	assert.InDelta(t, 100.0, a.FinalScore, 1e-9)
	assert.InDelta(t, 1.0, a.Breakdown.LexicalScore, 1e-9)
	assert.InDelta(t, 0.8, a.Breakdown.VectorScore, 1e-9)
	assert.InDelta(t, 0.88, a.Breakdown.RelevanceScore, 1e-9)
	require.Len(t, a.Explanation.MatchedChunks, 1)
	assert.Equal(t, types.ContentID("a-1"), a.Explanation.MatchedChunks[0].ContentID)

	// b: relevance 0.4*0.5 = 0.2, (0.1 + 0.5) * 100 + 10 = 70
	assert.InDelta(t, 70.0, resp.Results[1].FinalScore, 1e-9)
	// c: relevance 0.6*0.5 = 0.3, (0.15 + 0.5) * 100 = 65, no category bonus
	assert.InDelta(t, 65.0, resp.Results[2].FinalScore, 1e-9)
	assert.False(t, resp.Results[2].Explanation.CategoryMatch)

	for i := range resp.Results {
		assert.NoError(t, resp.Results[i].Validate())
	}
}

func TestRank_VectorFailureDegrades(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newTestRanker(t,
		staticLexical(defaultLexicalHits(), nil),
		staticVector(defaultVectorHits(), nil),
		stubEmbedder{err: errors.New("quota exceeded")},
		WithLogger(zap.New(core)),
	)

	resp, err := r.Rank(context.Background(), Request{
		Query:      types.Query{Category: types.CategoryInvoice},
		Candidates: testCandidates(),
	})
	require.NoError(t, err)

	assert.Equal(t, types.ModeHybrid, resp.Mode)
	assert.True(t, resp.Degradation.Lexical.Available)
	assert.False(t, resp.Degradation.Vector.Available)
	assert.Contains(t, resp.Degradation.Vector.Reason, "quota exceeded")
	assert.Zero(t, resp.VectorHits)
	require.Len(t, resp.Results, 3)
	for _, rc := range resp.Results {
		assert.Zero(t, rc.Breakdown.VectorScore)
	}

	entries := logs.FilterMessage("retrieval channel degraded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "vector", entries[0].ContextMap()["channel"])
}

func TestRank_LexicalFailureDegrades(t *testing.T) {
	r := newTestRanker(t,
		staticLexical(nil, errors.New("fts unavailable")),
		staticVector(defaultVectorHits(), nil),
		stubEmbedder{},
	)

	resp, err := r.Rank(context.Background(), Request{Candidates: testCandidates()})
	require.NoError(t, err)
	assert.Equal(t, types.ModeHybrid, resp.Mode)
	assert.False(t, resp.Degradation.Lexical.Available)
	assert.True(t, resp.Degradation.Vector.Available)
	for _, rc := range resp.Results {
		assert.Zero(t, rc.Breakdown.LexicalScore)
	}
}

func TestRank_BothFailedUsesRuleBased(t *testing.T) {
	r := newTestRanker(t,
		staticLexical(nil, errors.New("down")),
		staticVector(nil, errors.New("down")),
		stubEmbedder{},
	)

	resp, err := r.Rank(context.Background(), Request{
		Query: types.Query{
			Category:    types.CategoryInvoice,
			Constraints: types.Constraints{RequireSSO: true},
		},
		Candidates: testCandidates(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ModeRuleBased, resp.Mode)
	require.Len(t, resp.Results, 3)

	// a: 50 + 30 category + 10 required sso
	assert.Equal(t, types.CandidateID("a"), resp.Results[0].CandidateID)
	assert.InDelta(t, 90.0, resp.Results[0].FinalScore, 1e-9)
	// b: 50 + 30 category + 5 optional audit log
	assert.Equal(t, types.CandidateID("b"), resp.Results[1].CandidateID)
	assert.InDelta(t, 85.0, resp.Results[1].FinalScore, 1e-9)
	// c: base only
	assert.InDelta(t, 50.0, resp.Results[2].FinalScore, 1e-9)

	for _, rc := range resp.Results {
		assert.Equal(t, types.ModeRuleBased, rc.Breakdown.Mode)
	}
}

func TestRank_MissingChannelsAreDegraded(t *testing.T) {
	r := newTestRanker(t, staticLexical(defaultLexicalHits(), nil), nil, nil)
	resp, err := r.Rank(context.Background(), Request{Candidates: testCandidates()})
	require.NoError(t, err)
	assert.True(t, resp.Degradation.Lexical.Available)
	assert.False(t, resp.Degradation.Vector.Available)

	r = newTestRanker(t, nil, staticVector(defaultVectorHits(), nil), nil)
	resp, err = r.Rank(context.Background(), Request{Candidates: testCandidates()})
	require.NoError(t, err)
	assert.Equal(t, types.ModeRuleBased, resp.Mode)
	assert.Contains(t, resp.Degradation.Vector.Reason, "embedder")
}

func TestRank_ZeroHitCandidateIsPresent(t *testing.T) {
	r := newTestRanker(t, staticLexical(defaultLexicalHits(), nil), staticVector(nil, nil), stubEmbedder{})

	candidates := append(testCandidates(), types.Candidate{ID: "z", Name: "Zeta", Category: types.CategoryInvoice})
	resp, err := r.Rank(context.Background(), Request{
		Query:      types.Query{Category: types.CategoryInvoice},
		Candidates: candidates,
		TopK:       NoLimit,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, len(candidates))

	var z *types.RankedCandidate
	for i := range resp.Results {
		if resp.Results[i].CandidateID == "z" {
			z = &resp.Results[i]
		}
	}
	require.NotNil(t, z)
	assert.Zero(t, z.Breakdown.RelevanceScore)
	assert.Empty(t, z.Explanation.MatchedChunks)
	// fact match 1 (nothing required) * 0.5 * 100 + 10 category
	assert.InDelta(t, 60.0, z.FinalScore, 1e-9)
}

func TestRank_ForeignHitsDropped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	lexHits := append(defaultLexicalHits(), hit("x-1", "outsider", 50))
	r := newTestRanker(t, staticLexical(lexHits, nil), staticVector(nil, nil), stubEmbedder{}, WithLogger(zap.New(core)))

	resp, err := r.Rank(context.Background(), Request{Candidates: testCandidates()})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.DroppedHits)
	assert.Equal(t, 1, logs.FilterMessage("retrieval returned hits outside the admissible set").Len())
	for _, rc := range resp.Results {
		assert.NotEqual(t, types.CandidateID("outsider"), rc.CandidateID)
		for _, mc := range rc.Explanation.MatchedChunks {
			assert.Equal(t, rc.CandidateID, mc.CandidateID)
		}
	}
}

func TestRank_EmptyCandidates(t *testing.T) {
	var calls atomic.Int32
	lex := lexicalFunc(func(context.Context, string, []types.CandidateID, int) ([]types.RetrievalHit, error) {
		calls.Add(1)
		return nil, nil
	})
	r := newTestRanker(t, lex, nil, nil)

	resp, err := r.Rank(context.Background(), Request{Query: types.Query{Category: types.CategoryHR}})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalCandidates)
	assert.Zero(t, calls.Load())
}

func TestRank_InvalidCandidate(t *testing.T) {
	r := newTestRanker(t, staticLexical(nil, nil), nil, nil)
	_, err := r.Rank(context.Background(), Request{Candidates: []types.Candidate{{ID: "a"}, {Name: "no id"}}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, types.ErrInvalidCandidateID)
}

func TestRank_DuplicateCandidatesRankedOnce(t *testing.T) {
	r := newTestRanker(t, staticLexical(nil, nil), nil, nil)
	candidates := []types.Candidate{{ID: "a", Name: "first"}, {ID: "b"}, {ID: "a", Name: "second"}}

	resp, err := r.Rank(context.Background(), Request{Candidates: candidates})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalCandidates)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "first", resp.Results[0].Name)
}

func TestRank_TieBreakByCandidateID(t *testing.T) {
	r := newTestRanker(t, staticLexical(nil, nil), nil, nil)
	candidates := []types.Candidate{{ID: "delta"}, {ID: "alpha"}, {ID: "charlie"}, {ID: "bravo"}}

	resp, err := r.Rank(context.Background(), Request{Candidates: candidates})
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)
	for i, want := range []types.CandidateID{"alpha", "bravo", "charlie", "delta"} {
		assert.Equal(t, want, resp.Results[i].CandidateID)
		assert.Equal(t, i+1, resp.Results[i].Rank)
	}
}

func TestRank_TopK(t *testing.T) {
	candidates := make([]types.Candidate, 7)
	for i := range candidates {
		candidates[i] = types.Candidate{ID: types.CandidateID(rune('a' + i))}
	}

	r := newTestRanker(t, staticLexical(nil, nil), nil, nil)
	resp, err := r.Rank(context.Background(), Request{Candidates: candidates})
	require.NoError(t, err)
	assert.Len(t, resp.Results, DefaultTopK)
	assert.Equal(t, 7, resp.TotalCandidates)

	resp, err = r.Rank(context.Background(), Request{Candidates: candidates, TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	resp, err = r.Rank(context.Background(), Request{Candidates: candidates, TopK: NoLimit})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 7)

	r = newTestRanker(t, staticLexical(nil, nil), nil, nil, WithTopK(0))
	resp, err = r.Rank(context.Background(), Request{Candidates: candidates})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 7)
}

func TestRank_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lex := lexicalFunc(func(ctx context.Context, _ string, _ []types.CandidateID, _ int) ([]types.RetrievalHit, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	vec := vectorFunc(func(ctx context.Context, _ []float32, _ []types.CandidateID, _ int) ([]types.RetrievalHit, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	core, logs := observer.New(zap.WarnLevel)
	r := newTestRanker(t, lex, vec, stubEmbedder{}, WithLogger(zap.New(core)))

	resp, err := r.Rank(ctx, Request{Candidates: testCandidates()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
	assert.Zero(t, logs.FilterMessage("retrieval channel degraded").Len(), "cancellation is not a degradation")

	_, err = r.Rank(ctx, Request{Candidates: testCandidates()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRank_ChannelTimeout(t *testing.T) {
	slow := vectorFunc(func(ctx context.Context, _ []float32, _ []types.CandidateID, _ int) ([]types.RetrievalHit, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := newTestRanker(t, staticLexical(defaultLexicalHits(), nil), slow, stubEmbedder{},
		WithChannelTimeout(20*time.Millisecond))

	resp, err := r.Rank(context.Background(), Request{Candidates: testCandidates()})
	require.NoError(t, err)
	assert.True(t, resp.Degradation.Lexical.Available)
	assert.False(t, resp.Degradation.Vector.Available)
	assert.Contains(t, resp.Degradation.Vector.Reason, "timed out after 20ms")
	assert.Equal(t, types.ModeHybrid, resp.Mode)
}

func TestRank_Deterministic(t *testing.T) {
	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	r := newTestRanker(t,
		staticLexical(defaultLexicalHits(), nil),
		staticVector(defaultVectorHits(), nil),
		local,
		WithCache(0, 0),
	)
	req := Request{
		Query:      types.Query{Category: types.CategoryInvoice, Constraints: types.Constraints{RequireSSO: true}},
		Candidates: testCandidates(),
	}

	first, err := r.Rank(context.Background(), req)
	require.NoError(t, err)
	second, err := r.Rank(context.Background(), req)
	require.NoError(t, err)

	a, err := json.Marshal(first.Results)
	require.NoError(t, err)
	b, err := json.Marshal(second.Results)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRank_ScoresInRange(t *testing.T) {
	lexHits := []types.RetrievalHit{hit("a-1", "a", -3), hit("b-1", "b", 0), hit("c-1", "c", 1e9)}
	vecHits := []types.RetrievalHit{hit("a-1", "a", 2.5), hit("b-1", "b", -0.5), hit("c-1", "c", 1)}
	r := newTestRanker(t, staticLexical(lexHits, nil), staticVector(vecHits, nil), stubEmbedder{})

	resp, err := r.Rank(context.Background(), Request{Candidates: testCandidates(), TopK: NoLimit})
	require.NoError(t, err)
	for _, rc := range resp.Results {
		assert.GreaterOrEqual(t, rc.FinalScore, 0.0)
		assert.LessOrEqual(t, rc.FinalScore, 100.0)
		assert.NoError(t, rc.Validate())
		for _, mc := range rc.Explanation.MatchedChunks {
			assert.NoError(t, mc.Validate())
		}
	}
}
