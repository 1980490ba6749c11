package ranker

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/saasrank/internal/aggregate"
	"github.com/dshills/saasrank/internal/explain"
	"github.com/dshills/saasrank/internal/scoring"
	"github.com/dshills/saasrank/pkg/types"
)

const (
	// DefaultTopK is the number of ranked candidates returned
	DefaultTopK = 5
	// DefaultChannelTimeout bounds each retrieval channel
	DefaultChannelTimeout = 10 * time.Second
	// DefaultCacheSize is the number of cached responses
	DefaultCacheSize = 1000
	// DefaultCacheTTL is how long a cached response stays valid
	DefaultCacheTTL = time.Hour
	// NoLimit disables top-K truncation for a request
	NoLimit = -1
)

type options struct {
	logger             *zap.Logger
	weights            scoring.Weights
	ruleWeights        scoring.RuleWeights
	topK               int
	chunksPerCandidate int
	channelTimeout     time.Duration
	labels             map[types.Category]string
	explainer          *explain.Generator
	cacheSize          int
	cacheTTL           time.Duration
}

func defaultOptions() options {
	return options{
		logger:             zap.NewNop(),
		weights:            scoring.DefaultWeights(),
		ruleWeights:        scoring.DefaultRuleWeights(),
		topK:               DefaultTopK,
		chunksPerCandidate: aggregate.DefaultChunksPerCandidate,
		channelTimeout:     DefaultChannelTimeout,
		labels:             DefaultCategoryLabels,
		explainer:          explain.New(),
		cacheSize:          DefaultCacheSize,
		cacheTTL:           DefaultCacheTTL,
	}
}

// Option configures a Ranker
type Option func(*options)

// WithLogger sets the logger used for degradation warnings
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWeights overrides the hybrid scoring weights
func WithWeights(w scoring.Weights) Option {
	return func(o *options) {
		o.weights = w
	}
}

// WithRuleWeights overrides the rule-based fallback constants
func WithRuleWeights(rw scoring.RuleWeights) Option {
	return func(o *options) {
		o.ruleWeights = rw
	}
}

// WithTopK sets the default number of results. n <= 0 disables truncation.
func WithTopK(n int) Option {
	return func(o *options) {
		o.topK = n
	}
}

// WithChunksPerCandidate sets how many matched chunks each candidate keeps
func WithChunksPerCandidate(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunksPerCandidate = n
		}
	}
}

// WithChannelTimeout bounds each retrieval channel including embedding
func WithChannelTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.channelTimeout = d
		}
	}
}

// WithCategoryLabels replaces the category keyword table used for query text
func WithCategoryLabels(labels map[types.Category]string) Option {
	return func(o *options) {
		if labels != nil {
			o.labels = labels
		}
	}
}

// WithExplainer sets the explanation generator
func WithExplainer(g *explain.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.explainer = g
		}
	}
}

// WithCache sizes the response cache. size <= 0 disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheSize = size
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}
