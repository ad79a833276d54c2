package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Fl0k3n/kfe/internal/kerrors"
)

const (
	defaultOllamaHost    = "http://localhost:11434"
	defaultOllamaModel   = "qwen3-embedding:0.6b"
	defaultOllamaTimeout = 60 * time.Second
)

// OllamaConfig configures an OllamaTextEmbedder.
type OllamaConfig struct {
	Host      string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// OllamaTextEmbedder generates text embeddings through Ollama's HTTP
// `/api/embeddings` endpoint, using a pooled client the way the rest of
// this codebase's HTTP-backed providers do.
type OllamaTextEmbedder struct {
	client  *http.Client
	cfg     OllamaConfig
	dims    int
	breaker *kerrors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

var _ TextEmbedder = (*OllamaTextEmbedder)(nil)

// NewOllamaTextEmbedder constructs an embedder and probes the server once
// to auto-detect the vector dimension.
func NewOllamaTextEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaTextEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = defaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOllamaTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	transport := &http.Transport{
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     10 * time.Second,
	}
	e := &OllamaTextEmbedder{
		client: &http.Client{Transport: transport},
		cfg:    cfg,
		breaker: kerrors.NewCircuitBreaker("ollama-embed",
			kerrors.WithMaxFailures(5),
			kerrors.WithResetTimeout(30*time.Second)),
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	vec, err := e.embedOnce(probeCtx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probe ollama embedder: %w", err)
	}
	e.dims = len(vec)
	return e, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaTextEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(body))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return normalizeVector(out.Embedding), nil
}

// Embed implements TextEmbedder. Requests go through a circuit breaker so a
// down Ollama server fails fast instead of retrying into every caller's
// timeout, and through a short retry-with-backoff for isolated transient
// failures while the breaker is still closed.
func (e *OllamaTextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	return kerrors.RetryWithResult(ctx, kerrors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}, func() ([]float32, error) {
		var vec []float32
		err := e.breaker.Execute(func() error {
			v, err := e.embedOnce(ctx, text)
			if err != nil {
				return err
			}
			vec = v
			return nil
		})
		return vec, err
	})
}

// EmbedBatch implements TextEmbedder by issuing one request per text;
// Ollama's embeddings endpoint has no native batch form.
func (e *OllamaTextEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	results := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		results[i] = v
	}
	return results, nil
}

// Dimensions implements TextEmbedder.
func (e *OllamaTextEmbedder) Dimensions() int { return e.dims }

// ModelName implements TextEmbedder.
func (e *OllamaTextEmbedder) ModelName() string { return e.cfg.Model }

// Available implements TextEmbedder.
func (e *OllamaTextEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close implements TextEmbedder.
func (e *OllamaTextEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
