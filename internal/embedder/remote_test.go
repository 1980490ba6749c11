package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jinaServer(t *testing.T, failures int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req jinaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Respond out of order to exercise index sorting.
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = item{Index: j, Embedding: []float32{float32(j), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
	}))
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch preserves input order and caches", func(t *testing.T) {
		var calls atomic.Int32
		server := jinaServer(t, 0, &calls)
		defer server.Close()

		p, err := NewJinaProvider("test-key", NewCache(10))
		require.NoError(t, err)
		p.url = server.URL
		defer p.Close()

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		for i, e := range resp.Embeddings {
			assert.Equal(t, float32(i), e.Vector[0])
			assert.Equal(t, ProviderJina, e.Provider)
		}
		assert.Equal(t, int32(1), calls.Load())

		// Cached texts never reach the API again.
		e, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "b"})
		require.NoError(t, err)
		assert.Equal(t, float32(1), e.Vector[0])
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries transient errors", func(t *testing.T) {
		var calls atomic.Int32
		server := jinaServer(t, 2, &calls)
		defer server.Close()

		p, _ := NewJinaProvider("test-key", nil)
		p.url = server.URL

		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "retry me"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		server := jinaServer(t, 100, &calls)
		defer server.Close()

		p, _ := NewJinaProvider("test-key", nil)
		p.url = server.URL

		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "fail"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(MaxRetries), calls.Load())
	})

	t.Run("metadata", func(t *testing.T) {
		p, err := NewJinaProvider("test-key", nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, p.Provider())
		assert.Equal(t, JinaDimension, p.Dimension())
		assert.Equal(t, DefaultJinaModel, p.Model())
	})
}

func TestOpenAIProvider(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float64{0.5, float64(req.Dimensions)}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("test-key", NewCache(10), option.WithBaseURL(server.URL+"/"))
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "invoice management"})
	require.NoError(t, err)
	require.Len(t, e.Vector, 2)
	assert.Equal(t, float32(0.5), e.Vector[0])
	assert.Equal(t, float32(OpenAIDimension), e.Vector[1], "dimensions sent for the default model")
	assert.Equal(t, ProviderOpenAI, e.Provider)

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "invoice management"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryWithBackoff(t *testing.T) {
	fast := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after transient error", func(t *testing.T) {
		n := 0
		got, err := retryWithBackoff(context.Background(), fast, func() (string, error) {
			n++
			if n < 2 {
				return "", assert.AnError
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 2, n)
	})

	t.Run("returns last error", func(t *testing.T) {
		n := 0
		_, err := retryWithBackoff(context.Background(), fast, func() (int, error) {
			n++
			return 0, assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 3, n)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		n := 0
		_, err := retryWithBackoff(ctx, RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}, func() (int, error) {
			n++
			cancel()
			return 0, assert.AnError
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, n)
	})
}
