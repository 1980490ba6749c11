package ranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/saasrank/internal/aggregate"
	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/scoring"
	"github.com/dshills/saasrank/pkg/types"
)

var (
	// ErrNoRetrievers is returned when neither retrieval channel is configured
	ErrNoRetrievers = errors.New("no retrieval channel configured")
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid rank request")
)

// LexicalRetriever is the full-text retrieval primitive. Hits must only
// reference the given candidates; RawScore is higher-is-better.
type LexicalRetriever interface {
	SearchLexical(ctx context.Context, query string, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error)
}

// VectorRetriever is the embedding retrieval primitive. RawScore is a
// cosine distance in [0, 2].
type VectorRetriever interface {
	SearchVector(ctx context.Context, vector []float32, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error)
}

// Request is one ranking invocation
type Request struct {
	Query      types.Query
	Candidates []types.Candidate // Admissible set, already filtered by hard constraints
	TopK       int               // 0 uses the ranker default, NoLimit returns every candidate
	UseCache   bool
	Revision   string // Catalog content revision, part of the cache key
}

// ChannelStatus reports whether a retrieval channel contributed
type ChannelStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Degradation records which channels failed during a search
type Degradation struct {
	Lexical ChannelStatus `json:"lexical"`
	Vector  ChannelStatus `json:"vector"`
}

// Degraded reports whether any channel was unavailable
func (d Degradation) Degraded() bool {
	return !d.Lexical.Available || !d.Vector.Available
}

// Response contains ranked results and search metadata
type Response struct {
	Results         []types.RankedCandidate
	TotalCandidates int
	Mode            types.ScoringMode
	Degradation     Degradation
	QueryText       string
	LexicalHits     int
	VectorHits      int
	DroppedHits     int // Hits for candidates outside the admissible set
	Duration        time.Duration
	CacheHit        bool
}

// Ranker coordinates retrieval, aggregation, scoring and explanation
type Ranker struct {
	lexical  LexicalRetriever
	vector   VectorRetriever
	embedder embedder.Embedder
	scorer   *scoring.Scorer
	opts     options

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Ranker. Either retriever may be nil, in which case that
// channel is always reported as degraded. The vector channel also needs
// an embedder.
func New(lexical LexicalRetriever, vector VectorRetriever, emb embedder.Embedder, opts ...Option) (*Ranker, error) {
	if lexical == nil && vector == nil {
		return nil, ErrNoRetrievers
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	scorer, err := scoring.NewScorer(o.weights, o.ruleWeights)
	if err != nil {
		return nil, err
	}

	r := &Ranker{
		lexical:  lexical,
		vector:   vector,
		embedder: emb,
		scorer:   scorer,
		opts:     o,
	}

	if o.cacheSize > 0 {
		cache, err := lru.New[[32]byte, *cacheEntry](o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU cache: %w", err)
		}
		r.cache = cache
	}

	return r, nil
}

// Rank scores and orders the admissible candidates. Channel failures
// degrade the result instead of failing it; only validation errors and
// cancellation of ctx are returned.
func (r *Ranker) Rank(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, err := admissible(req.Candidates)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = r.opts.topK
	}

	if req.UseCache {
		if cached := r.checkCache(req, topK); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	queryText := BuildQueryText(req.Query, r.opts.labels)
	response := &Response{
		Results:         []types.RankedCandidate{},
		TotalCandidates: len(candidates),
		Mode:            types.ModeHybrid,
		QueryText:       queryText,
		Degradation: Degradation{
			Lexical: ChannelStatus{Available: true},
			Vector:  ChannelStatus{Available: true},
		},
	}

	if len(candidates) == 0 {
		response.Duration = time.Since(startTime)
		return response, nil
	}

	ids := types.CandidateIDs(candidates)
	retrieved, err := r.retrieve(ctx, queryText, ids)
	if err != nil {
		return nil, err
	}

	response.Degradation = retrieved.degradation
	response.LexicalHits = len(retrieved.lexical)
	response.VectorHits = len(retrieved.vector)
	if !retrieved.degradation.Lexical.Available && !retrieved.degradation.Vector.Available {
		response.Mode = types.ModeRuleBased
	}

	agg := aggregate.Aggregate(
		scoring.NormalizeLexicalHits(retrieved.lexical),
		scoring.NormalizeVectorHits(retrieved.vector),
		ids,
		r.scorer.Weights().Blend,
		r.opts.chunksPerCandidate,
	)
	response.DroppedHits = agg.Dropped
	if agg.Dropped > 0 {
		r.opts.logger.Warn("retrieval returned hits outside the admissible set",
			zap.Int("dropped", agg.Dropped))
	}

	ranked := make([]types.RankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = r.scoreCandidate(req.Query, c, agg.Signals[i], response.Mode)
	}

	sortRanked(ranked)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	response.Results = ranked
	response.Duration = time.Since(startTime)

	r.opts.logger.Debug("ranked candidates",
		zap.String("mode", string(response.Mode)),
		zap.Int("candidates", response.TotalCandidates),
		zap.Int("lexical_hits", response.LexicalHits),
		zap.Int("vector_hits", response.VectorHits),
		zap.Int("merged_chunks", agg.Merged),
		zap.Duration("duration", response.Duration))

	if req.UseCache && !response.Degradation.Degraded() {
		r.storeInCache(req, topK, response)
	}

	return response, nil
}

// admissible validates candidates and drops repeated IDs, keeping the first
func admissible(in []types.Candidate) ([]types.Candidate, error) {
	out := make([]types.Candidate, 0, len(in))
	seen := make(map[types.CandidateID]struct{}, len(in))
	for i := range in {
		if err := in[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: candidate %d: %w", ErrInvalidRequest, i, err)
		}
		if _, dup := seen[in[i].ID]; dup {
			continue
		}
		seen[in[i].ID] = struct{}{}
		out = append(out, in[i])
	}
	return out, nil
}

func (r *Ranker) scoreCandidate(q types.Query, c types.Candidate, signal types.CandidateSignal, mode types.ScoringMode) types.RankedCandidate {
	categoryMatch := scoring.CategoryMatches(c.Category, q.Category)
	facts := scoring.EvaluateFacts(c.Facts, q.Constraints)

	breakdown := r.scorer.Score(mode, scoring.Input{
		CategoryMatch: categoryMatch,
		Signal:        signal,
		Facts:         facts,
	})

	return types.RankedCandidate{
		CandidateID: c.ID,
		Name:        c.Name,
		Vendor:      c.Vendor,
		FinalScore:  breakdown.Total,
		Breakdown:   breakdown,
		Explanation: r.opts.explainer.Explain(categoryMatch, facts, signal.Chunks),
	}
}

// sortRanked orders by score descending, ties by candidate ID ascending
func sortRanked(ranked []types.RankedCandidate) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
}

// retrieval holds the outcome of both channels
type retrieval struct {
	lexical     []types.RetrievalHit
	vector      []types.RetrievalHit
	degradation Degradation
}

// retrieve runs both channels concurrently. Neither goroutine returns an
// error so one channel failing never cancels the other. The only error is
// ctx's own, in which case channel failures are not degradations.
func (r *Ranker) retrieve(ctx context.Context, queryText string, ids []types.CandidateID) (retrieval, error) {
	maxResults := len(ids) * r.opts.chunksPerCandidate

	var (
		g                errgroup.Group
		lexHits, vecHits []types.RetrievalHit
		lexErr, vecErr   error
	)

	g.Go(func() error {
		lexHits, lexErr = r.runLexical(ctx, queryText, ids, maxResults)
		return nil
	})
	g.Go(func() error {
		vecHits, vecErr = r.runVector(ctx, queryText, ids, maxResults)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return retrieval{}, err
	}

	res := retrieval{lexical: lexHits, vector: vecHits}
	res.degradation.Lexical = r.channelStatus(types.ChannelLexical, lexErr)
	res.degradation.Vector = r.channelStatus(types.ChannelVector, vecErr)
	if lexErr != nil {
		res.lexical = nil
	}
	if vecErr != nil {
		res.vector = nil
	}
	return res, nil
}

var (
	errChannelNotConfigured = errors.New("channel not configured")
	errEmbedderMissing      = errors.New("embedder not configured")
)

func (r *Ranker) runLexical(ctx context.Context, queryText string, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	if r.lexical == nil {
		return nil, errChannelNotConfigured
	}
	cctx, cancel := context.WithTimeout(ctx, r.opts.channelTimeout)
	defer cancel()

	return r.lexical.SearchLexical(cctx, queryText, ids, maxResults)
}

func (r *Ranker) runVector(ctx context.Context, queryText string, ids []types.CandidateID, maxResults int) ([]types.RetrievalHit, error) {
	if r.vector == nil {
		return nil, errChannelNotConfigured
	}
	if r.embedder == nil {
		return nil, errEmbedderMissing
	}
	cctx, cancel := context.WithTimeout(ctx, r.opts.channelTimeout)
	defer cancel()

	embedding, err := r.embedder.GenerateEmbedding(cctx, embedder.EmbeddingRequest{Text: queryText})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return r.vector.SearchVector(cctx, embedding.Vector, ids, maxResults)
}

// channelStatus converts a channel error into a status and logs the degradation
func (r *Ranker) channelStatus(channel types.Channel, err error) ChannelStatus {
	if err == nil {
		return ChannelStatus{Available: true}
	}

	reason := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = fmt.Sprintf("timed out after %s", r.opts.channelTimeout)
	}

	r.opts.logger.Warn("retrieval channel degraded",
		zap.String("channel", string(channel)),
		zap.Error(err))

	return ChannelStatus{Available: false, Reason: reason}
}
