package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalProvider is an offline embedder based on feature hashing. Word
// tokens and character trigrams are hashed into signed buckets, so texts
// sharing vocabulary land close in cosine space. It needs no credentials
// and is fully deterministic.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: LocalDimension,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateSingle(ctx, l, req)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := generateCached(ctx, l.cache, ProviderLocal, l.model, req.Texts, l.embedAll)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) embedAll(ctx context.Context, texts []string, _ string) ([]*Embedding, error) {
	out := make([]*Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector := HashVector(text, l.dimension)
		out[i] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderLocal,
			Model:     l.model,
		}
	}
	return out, nil
}

// HashVector embeds text into a unit vector of the given dimension
func HashVector(text string, dimension int) []float32 {
	vector := make([]float32, dimension)
	if dimension == 0 {
		return vector
	}

	add := func(feature string, weight float32) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		bucket := int(sum % uint64(dimension))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vector[bucket] += weight
	}

	for _, token := range tokenize(text) {
		add("w:"+token, 1)
		runes := []rune(token)
		for i := 0; i+3 <= len(runes); i++ {
			add("t:"+string(runes[i:i+3]), 0.5)
		}
	}

	return NormalizeVector(vector)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
