package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SAASRANK_STORAGE_DRIVER
const EnvPrefix = "SAASRANK"

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ConfigPath overrides the default ~/.saasrank/config.toml. YAML and
	// TOML are accepted, chosen by extension.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence:
// defaults < config file < env (SAASRANK_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	path := opts.ConfigPath
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := mergeConfigFile(v, path, opts.ConfigPath != ""); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults. Every key must have a
// default for AutomaticEnv to apply during Unmarshal.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("storage.driver", def.Storage.Driver)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("storage.dsn", def.Storage.DSN)
	v.SetDefault("storage.text_search_config", def.Storage.TextSearchConfig)

	v.SetDefault("embedding.provider", def.Embedding.Provider)
	v.SetDefault("embedding.model", def.Embedding.Model)
	v.SetDefault("embedding.base_url", def.Embedding.BaseURL)
	v.SetDefault("embedding.cache_size", def.Embedding.CacheSize)

	v.SetDefault("ranking.top_k", def.Ranking.TopK)
	v.SetDefault("ranking.chunks_per_candidate", def.Ranking.ChunksPerCandidate)
	v.SetDefault("ranking.channel_timeout_seconds", def.Ranking.ChannelTimeoutSeconds)
	v.SetDefault("ranking.cache_size", def.Ranking.CacheSize)
	v.SetDefault("ranking.cache_ttl_seconds", def.Ranking.CacheTTLSeconds)

	v.SetDefault("ranking.weights.lexical", def.Ranking.Weights.Lexical)
	v.SetDefault("ranking.weights.vector", def.Ranking.Weights.Vector)
	v.SetDefault("ranking.weights.relevance", def.Ranking.Weights.Relevance)
	v.SetDefault("ranking.weights.fact_match", def.Ranking.Weights.FactMatch)
	v.SetDefault("ranking.weights.category_bonus", def.Ranking.Weights.CategoryBonus)

	v.SetDefault("ranking.rules.base", def.Ranking.Rules.Base)
	v.SetDefault("ranking.rules.category_bonus", def.Ranking.Rules.CategoryBonus)
	v.SetDefault("ranking.rules.required_fact_bonus", def.Ranking.Rules.RequiredFactBonus)
	v.SetDefault("ranking.rules.optional_fact_bonus", def.Ranking.Rules.OptionalFactBonus)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

// mergeConfigFile merges the config file if it exists. A missing file is
// only an error when the path was given explicitly.
func mergeConfigFile(v *viper.Viper, path string, explicit bool) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath returns ~/.saasrank/config.toml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".saasrank", "config.toml")
}
