package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	a := ComputeHash("m", "hello")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ComputeHash("m", "hello"))
	assert.NotEqual(t, a, ComputeHash("m", "hello!"))
	assert.NotEqual(t, a, ComputeHash("other", "hello"), "model is part of the key")
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"valid", "accounting software", nil},
		{"empty", "", ErrEmptyText},
		{"whitespace only", " \t\n", ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(EmbeddingRequest{Text: tt.text})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", " "}}), ErrInvalidInput)

	large := make([]string, MaxBatchSize+1)
	for i := range large {
		large[i] = "text"
	}
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: large}), ErrBatchTooLarge)
}

func TestCache(t *testing.T) {
	t.Run("get returns copy", func(t *testing.T) {
		c := NewCache(10)
		c.Set("h", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := c.Get("h")
		require.True(t, ok)
		got.Vector[0] = 99

		again, _ := c.Get("h")
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("set stores copy", func(t *testing.T) {
		c := NewCache(10)
		emb := &Embedding{Vector: []float32{1}}
		c.Set("h", emb)
		emb.Vector[0] = 5

		got, _ := c.Get("h")
		assert.Equal(t, float32(1), got.Vector[0])
	})

	t.Run("eviction", func(t *testing.T) {
		c := NewCache(2)
		c.Set("a", &Embedding{})
		c.Set("b", &Embedding{})
		c.Set("c", &Embedding{})
		assert.Equal(t, 2, c.Size())
		_, ok := c.Get("a")
		assert.False(t, ok)

		c.Clear()
		assert.Equal(t, 0, c.Size())
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		var c *Cache
		c.Set("a", &Embedding{})
		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Size())
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, DefaultLocalModel, p.Model())

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "expense report approval workflow"})
	require.NoError(t, err)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.NotEmpty(t, a.Hash)
	assert.InDelta(t, 1.0, norm(a.Vector), 1e-5)

	again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "expense report approval workflow"})
	require.NoError(t, err)
	assert.Equal(t, a.Vector, again.Vector, "deterministic")

	near, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "expense approval"})
	far, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "payroll tax filing"})
	assert.Greater(t, dot(a.Vector, near.Vector), dot(a.Vector, far.Vector))

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)

	batch, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a b", "c d"}})
	require.NoError(t, err)
	assert.Len(t, batch.Embeddings, 2)
	assert.Equal(t, ProviderLocal, batch.Provider)
}

func TestLocalProviderCancelled(t *testing.T) {
	p, _ := NewLocalProvider(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "anything"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashVectorMultilingual(t *testing.T) {
	v := HashVector("経費精算 ワークフロー", 64)
	assert.InDelta(t, 1.0, norm(v), 1e-5)

	zero := HashVector("!!! ???", 64)
	assert.Equal(t, 0.0, norm(zero))
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
