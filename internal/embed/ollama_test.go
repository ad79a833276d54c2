package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fl0k3n/kfe/internal/kerrors"
)

func newFakeOllamaServer(t *testing.T, dims int, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = 1.0
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
}

func TestNewOllamaTextEmbedderProbesDimensions(t *testing.T) {
	srv := newFakeOllamaServer(t, 8, nil)
	defer srv.Close()

	e, err := NewOllamaTextEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())
}

func TestOllamaTextEmbedderEmbedNormalizes(t *testing.T) {
	srv := newFakeOllamaServer(t, 4, nil)
	defer srv.Close()

	e, err := NewOllamaTextEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	assert.InDelta(t, 1.0, vecNorm(vec), 1e-4)
}

func TestOllamaTextEmbedderEmbedBatch(t *testing.T) {
	srv := newFakeOllamaServer(t, 4, nil)
	defer srv.Close()

	e, err := NewOllamaTextEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
}

func TestOllamaTextEmbedderClosedRejectsRequests(t *testing.T) {
	srv := newFakeOllamaServer(t, 4, nil)
	defer srv.Close()

	e, err := NewOllamaTextEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

// TestOllamaTextEmbedderCircuitOpensAfterRepeatedFailures verifies the
// embedder's breaker trips instead of retrying forever once the server
// starts erroring, per its NewCircuitBreaker("ollama-embed", maxFailures=5)
// wiring.
func TestOllamaTextEmbedderCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var fail atomic.Bool
	srv := newFakeOllamaServer(t, 4, &fail)
	defer srv.Close()

	e, err := NewOllamaTextEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	fail.Store(true)
	for i := 0; i < 5; i++ {
		_, err := e.Embed(context.Background(), "hello")
		assert.Error(t, err)
	}

	assert.Equal(t, "open", e.breaker.State().String())

	_, err = e.Embed(context.Background(), "hello")
	assert.True(t, errors.Is(err, kerrors.ErrCircuitOpen), "expected circuit-open error, got %v", err)
}
