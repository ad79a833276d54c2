package embed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StaticImageEmbedder and StaticClipEmbedder are the offline counterparts
// of StaticTextEmbedder (see static.go): deterministic, dependency-free
// stand-ins for a real vision model, used so a directory can be indexed
// and searched end-to-end (image/clip_image/clip_video dimensions
// included) without a GPU or a running model server. Both hash file
// content/path tokens into a fixed-width vector; semantic quality is not
// the point, wiring is.
type StaticImageEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticImageEmbedder returns a ready StaticImageEmbedder.
func NewStaticImageEmbedder() *StaticImageEmbedder {
	return &StaticImageEmbedder{}
}

// EmbedImage implements ImageEmbedder by hashing the file's content in
// fixed-size chunks into StaticDimensions buckets (SHA-256 per chunk, a
// different hash from the FNV-based token buckets of StaticTextEmbedder).
func (e *StaticImageEmbedder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return normalizeVector(hashChunksToVector(data, StaticDimensions)), nil
}

// Dimensions implements ImageEmbedder.
func (e *StaticImageEmbedder) Dimensions() int { return StaticDimensions }

// ModelName implements ImageEmbedder.
func (e *StaticImageEmbedder) ModelName() string { return "static-image" }

// Close implements ImageEmbedder.
func (e *StaticImageEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// StaticClipEmbedder embeds text and images into the same StaticDimensions
// space by routing both through the same hash-bucket function used for
// text tokens, so a text query and a visually-similar image land near
// each other for simple keyword-in-filename style matches. It is not a
// substitute for a trained joint embedding model.
type StaticClipEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticClipEmbedder returns a ready StaticClipEmbedder.
func NewStaticClipEmbedder() *StaticClipEmbedder {
	return &StaticClipEmbedder{}
}

// EmbedText implements ClipEmbedder using the same tokenizer StaticTextEmbedder
// uses, so CLIP text queries land in the same bucket space as EmbedImage's
// path-token contribution.
func (e *StaticClipEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}
	vec := make([]float32, StaticDimensions)
	for _, tok := range tokenize(trimmed) {
		vec[hashToIndex(tok, StaticDimensions)] += 1
	}
	return normalizeVector(vec), nil
}

// EmbedImage implements ClipEmbedder by combining the file's base-name
// tokens (so text queries naming the file can match) with a content hash
// contribution (so visual near-duplicates cluster).
func (e *StaticClipEmbedder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	vec := hashChunksToVector(data, StaticDimensions)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, tok := range tokenize(base) {
		vec[hashToIndex(tok, StaticDimensions)] += 1
	}
	return normalizeVector(vec), nil
}

// EmbedVideoFrames implements ClipEmbedder by embedding each extracted
// frame independently (one row per frame, per spec.md §4.4's N×D video
// clip matrix).
func (e *StaticClipEmbedder) EmbedVideoFrames(ctx context.Context, framePaths []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	rows := make([][]float32, len(framePaths))
	for i, p := range framePaths {
		v, err := e.EmbedImage(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("embed frame %d: %w", i, err)
		}
		rows[i] = v
	}
	return rows, nil
}

// Dimensions implements ClipEmbedder.
func (e *StaticClipEmbedder) Dimensions() int { return StaticDimensions }

// ModelName implements ClipEmbedder.
func (e *StaticClipEmbedder) ModelName() string { return "static-clip" }

// Close implements ClipEmbedder.
func (e *StaticClipEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *StaticClipEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// hashChunksToVector folds data into size buckets 64 bytes at a time via
// SHA-256, so similar-but-not-identical byte streams still share some
// buckets instead of a single full-content hash collapsing to one index.
func hashChunksToVector(data []byte, size int) []float32 {
	vec := make([]float32, size)
	const chunk = 64
	for i := 0; i < len(data); i += chunk {
		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		sum := sha256.Sum256(data[i:end])
		var idx uint64
		for _, b := range sum[:8] {
			idx = (idx << 8) | uint64(b)
		}
		vec[idx%uint64(size)] += 1
	}
	return vec
}
