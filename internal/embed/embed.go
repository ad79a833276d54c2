// Package embed defines the embedding-generation boundary (text, image,
// CLIP) the engine indexes through, plus two concrete providers: an
// Ollama-backed implementation for real deployments and a dependency-free
// hash-based fallback for tests and offline use. Both satisfy the same
// TextEmbedder contract so EmbeddingProcessor never branches on provider.
package embed

import (
	"context"
	"math"
)

const (
	// DefaultBatchSize bounds how many texts a single EmbedBatch call sends
	// to a remote provider at once.
	DefaultBatchSize = 32
	// StaticDimensions is the embedding width produced by StaticTextEmbedder.
	StaticDimensions = 256
)

// TextEmbedder turns free text into a unit-normalized vector. Implementations
// must return vectors of constant Dimensions() so a cosine-similarity dot
// product is meaningful across calls.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// ImageEmbedder embeds an image file for the description-adjacent "image
// content" similarity branch (distinct from the CLIP joint space).
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// ClipEmbedder embeds text and images/video frames into one shared space so
// @clip queries can match text against visual content directly.
type ClipEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	EmbedVideoFrames(ctx context.Context, framePaths []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// normalizeVector scales v to unit length; a zero vector is returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
