package embedder

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Embedder using the OpenAI SDK
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
	cache      *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder. An empty apiKey falls
// back to OPENAI_API_KEY. Extra request options (base URL, organization)
// are passed to the SDK client.
func NewOpenAIProvider(apiKey string, cache *Cache, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	// Retries are handled by retryWithBackoff.
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAIProvider{
		client:     openai.NewClient(clientOpts...),
		model:      DefaultOpenAIModel,
		dimensions: OpenAIDimension,
		cache:      cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateSingle(ctx, o, req)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	embeddings, err := generateCached(ctx, o.cache, ProviderOpenAI, model, req.Texts, o.callAPI)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      model,
	}, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormat("float"),
	}
	if o.dimensions > 0 && model == DefaultOpenAIModel {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	data := resp.Data
	sort.Slice(data, func(a, b int) bool {
		return data[a].Index < data[b].Index
	})

	embeddings := make([]*Embedding, len(data))
	for i, d := range data {
		vector := make([]float32, len(d.Embedding))
		for k, v := range d.Embedding {
			vector[k] = float32(v)
		}
		embeddings[i] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOpenAI,
			Model:     model,
		}
	}

	return embeddings, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimensions
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
