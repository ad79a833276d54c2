package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vecNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestStaticTextEmbedderIsDeterministic(t *testing.T) {
	e := NewStaticTextEmbedder()
	v1, err := e.Embed(context.Background(), "a red bicycle in the park")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "a red bicycle in the park")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, StaticDimensions)
}

func TestStaticTextEmbedderNormalizesToUnitLength(t *testing.T) {
	e := NewStaticTextEmbedder()
	v, err := e.Embed(context.Background(), "some descriptive text about a document")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vecNorm(v), 1e-5)
}

func TestStaticTextEmbedderEmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticTextEmbedder()
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestStaticTextEmbedderSimilarTextsAreCloser(t *testing.T) {
	e := NewStaticTextEmbedder()
	a, _ := e.Embed(context.Background(), "a photo of a dog running on the beach")
	b, _ := e.Embed(context.Background(), "a photo of a dog playing on the beach")
	c, _ := e.Embed(context.Background(), "quarterly financial report for the board")

	dot := func(x, y []float32) float64 {
		var s float64
		for i := range x {
			s += float64(x[i]) * float64(y[i])
		}
		return s
	}
	assert.Greater(t, dot(a, b), dot(a, c))
}

func TestStaticTextEmbedderCloseRejectsFurtherCalls(t *testing.T) {
	e := NewStaticTextEmbedder()
	require.NoError(t, e.Close())
	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestStaticTextEmbedderEmbedBatch(t *testing.T) {
	e := NewStaticTextEmbedder()
	vs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Len(t, vs, 3)
}

type countingEmbedder struct {
	calls int
	dims  int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	v := make([]float32, c.dims)
	for i := range v {
		v[i] = float32(len(text))
	}
	return v, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := c.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int                  { return c.dims }
func (c *countingEmbedder) ModelName() string                { return "counting" }
func (c *countingEmbedder) Available(_ context.Context) bool { return true }
func (c *countingEmbedder) Close() error                     { return nil }

func TestCachedTextEmbedderServesRepeatsFromCache(t *testing.T) {
	inner := &countingEmbedder{dims: 4}
	cached, err := NewCachedTextEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedTextEmbedderBatchOnlyCallsInnerForMisses(t *testing.T) {
	inner := &countingEmbedder{dims: 4}
	cached, err := NewCachedTextEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "cached query")
	require.NoError(t, err)

	_, err = cached.EmbedBatch(context.Background(), []string{"cached query", "fresh query"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}
