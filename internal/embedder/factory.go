package embedder

import (
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/option"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, local; empty means detect from environment
	APIKey    string
	Model     string // Optional: override the provider's default model
	BaseURL   string // Optional: alternate endpoint (proxies, tests)
	CacheSize int    // 0 disables caching
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
// 1. SAASRANK_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{CacheSize: DefaultCacheSize})
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		if cfg.BaseURL != "" {
			p.url = cfg.BaseURL
		}
		return p, nil
	case ProviderOpenAI:
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		p, err := NewOpenAIProvider(cfg.APIKey, cache, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" && cfg.Model != DefaultOpenAIModel {
			p.model = cfg.Model
			p.dimensions = 0
		}
		return p, nil
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
