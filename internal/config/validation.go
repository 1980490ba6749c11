package config

import (
	"fmt"
	"strings"

	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/logging"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	switch cfg.Storage.Driver {
	case DriverSQLite:
		if cfg.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.Storage.DSN == "" {
			errs = append(errs, "storage.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, "storage.driver must be one of sqlite|postgres")
	}

	if p := cfg.Embedding.Provider; p != "" && !oneOf(strings.ToLower(p), embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal) {
		errs = append(errs, "embedding.provider must be one of jina|openai|local")
	}
	if cfg.Embedding.CacheSize < 0 {
		errs = append(errs, "embedding.cache_size cannot be negative")
	}

	if cfg.Ranking.ChunksPerCandidate < 1 {
		errs = append(errs, "ranking.chunks_per_candidate must be >= 1")
	}
	if cfg.Ranking.ChannelTimeoutSeconds <= 0 {
		errs = append(errs, "ranking.channel_timeout_seconds must be > 0")
	}
	if cfg.Ranking.CacheSize < 0 {
		errs = append(errs, "ranking.cache_size cannot be negative")
	}
	if cfg.Ranking.CacheTTLSeconds < 0 {
		errs = append(errs, "ranking.cache_ttl_seconds cannot be negative")
	}
	if err := cfg.Ranking.ScoringWeights().Validate(); err != nil {
		errs = append(errs, "ranking.weights: "+err.Error())
	}

	if !oneOf(strings.ToLower(cfg.Log.Level), logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError) {
		errs = append(errs, "log.level must be one of debug|info|warn|error")
	}
	if !oneOf(cfg.Log.Format, logging.FormatConsole, logging.FormatJSON) {
		errs = append(errs, "log.format must be one of console|json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
