// Package config loads layered configuration for saasrank.
//
// Precedence: defaults < config file < SAASRANK_* environment < flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/saasrank/internal/aggregate"
	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/logging"
	"github.com/dshills/saasrank/internal/ranker"
	"github.com/dshills/saasrank/internal/scoring"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the effective configuration
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Log       LogConfig       `mapstructure:"log"`
}

// StorageConfig selects the catalog backend
type StorageConfig struct {
	Driver           string `mapstructure:"driver"`
	Path             string `mapstructure:"path"` // SQLite database file
	DSN              string `mapstructure:"dsn"`  // PostgreSQL connection string
	TextSearchConfig string `mapstructure:"text_search_config"`
}

// EmbeddingConfig configures the query embedder. API keys are read from
// JINA_API_KEY / OPENAI_API_KEY by the embedder itself.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // Empty means auto-detect
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	CacheSize int    `mapstructure:"cache_size"`
}

// RankingConfig tunes the ranker
type RankingConfig struct {
	TopK                  int           `mapstructure:"top_k"`
	ChunksPerCandidate    int           `mapstructure:"chunks_per_candidate"`
	ChannelTimeoutSeconds float64       `mapstructure:"channel_timeout_seconds"`
	CacheSize             int           `mapstructure:"cache_size"`
	CacheTTLSeconds       int           `mapstructure:"cache_ttl_seconds"`
	Weights               WeightsConfig `mapstructure:"weights"`
	Rules                 RulesConfig   `mapstructure:"rules"`
}

// WeightsConfig mirrors scoring.Weights
type WeightsConfig struct {
	Lexical       float64 `mapstructure:"lexical"`
	Vector        float64 `mapstructure:"vector"`
	Relevance     float64 `mapstructure:"relevance"`
	FactMatch     float64 `mapstructure:"fact_match"`
	CategoryBonus float64 `mapstructure:"category_bonus"`
}

// RulesConfig mirrors scoring.RuleWeights
type RulesConfig struct {
	Base              float64 `mapstructure:"base"`
	CategoryBonus     float64 `mapstructure:"category_bonus"`
	RequiredFactBonus float64 `mapstructure:"required_fact_bonus"`
	OptionalFactBonus float64 `mapstructure:"optional_fact_bonus"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	w := scoring.DefaultWeights()
	rw := scoring.DefaultRuleWeights()

	return Config{
		Storage: StorageConfig{
			Driver:           DriverSQLite,
			Path:             defaultDBPath(),
			TextSearchConfig: "simple",
		},
		Embedding: EmbeddingConfig{
			CacheSize: embedder.DefaultCacheSize,
		},
		Ranking: RankingConfig{
			TopK:                  ranker.DefaultTopK,
			ChunksPerCandidate:    aggregate.DefaultChunksPerCandidate,
			ChannelTimeoutSeconds: ranker.DefaultChannelTimeout.Seconds(),
			CacheSize:             ranker.DefaultCacheSize,
			CacheTTLSeconds:       int(ranker.DefaultCacheTTL.Seconds()),
			Weights: WeightsConfig{
				Lexical:       w.Lexical,
				Vector:        w.Vector,
				Relevance:     w.Relevance,
				FactMatch:     w.FactMatch,
				CategoryBonus: w.CategoryBonus,
			},
			Rules: RulesConfig{
				Base:              rw.Base,
				CategoryBonus:     rw.CategoryBonus,
				RequiredFactBonus: rw.RequiredFactBonus,
				OptionalFactBonus: rw.OptionalFactBonus,
			},
		},
		Log: LogConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatConsole,
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "saasrank.db"
	}
	return filepath.Join(home, ".saasrank", "catalog.db")
}

// ScoringWeights converts to scoring.Weights
func (r RankingConfig) ScoringWeights() scoring.Weights {
	return scoring.Weights{
		Lexical:       r.Weights.Lexical,
		Vector:        r.Weights.Vector,
		Relevance:     r.Weights.Relevance,
		FactMatch:     r.Weights.FactMatch,
		CategoryBonus: r.Weights.CategoryBonus,
	}
}

// RuleWeights converts to scoring.RuleWeights
func (r RankingConfig) RuleWeights() scoring.RuleWeights {
	return scoring.RuleWeights{
		Base:              r.Rules.Base,
		CategoryBonus:     r.Rules.CategoryBonus,
		RequiredFactBonus: r.Rules.RequiredFactBonus,
		OptionalFactBonus: r.Rules.OptionalFactBonus,
	}
}

// ChannelTimeout returns the per-channel retrieval timeout
func (r RankingConfig) ChannelTimeout() time.Duration {
	return time.Duration(r.ChannelTimeoutSeconds * float64(time.Second))
}

// CacheTTL returns the response cache TTL
func (r RankingConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// RankerOptions builds the ranker options for this configuration
func (r RankingConfig) RankerOptions() []ranker.Option {
	return []ranker.Option{
		ranker.WithWeights(r.ScoringWeights()),
		ranker.WithRuleWeights(r.RuleWeights()),
		ranker.WithTopK(r.TopK),
		ranker.WithChunksPerCandidate(r.ChunksPerCandidate),
		ranker.WithChannelTimeout(r.ChannelTimeout()),
		ranker.WithCache(r.CacheSize, r.CacheTTL()),
	}
}

// EmbedderConfig converts to the embedder factory configuration
func (e EmbeddingConfig) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  e.Provider,
		Model:     e.Model,
		BaseURL:   e.BaseURL,
		CacheSize: e.CacheSize,
	}
}
