// Package embedding wraps the external embedding service behind query
// hygiene: text normalization, strict dimension checking, unit-length
// normalization, and a bounded memoization cache so repeated questions do
// not re-hit the service.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// DefaultCacheSize bounds the query-embedding memoization cache.
const DefaultCacheSize = 256

// Sentinel errors for embedding operations.
var (
	// ErrEmptyText indicates the input contained no readable characters.
	ErrEmptyText = errors.New("input text must contain readable characters")

	// ErrDimensionMismatch indicates the service returned a vector of
	// unexpected length. This is a hard failure: vectors are never padded
	// or truncated.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroNorm indicates the returned vector cannot be normalized.
	ErrZeroNorm = errors.New("embedding norm must be finite and non-zero")
)

// Embedder produces unit-length query embeddings with memoization.
// It is safe for concurrent use.
type Embedder struct {
	embedder  ai.Embedder
	dimension int
	cache     *lruCache
	logger    *slog.Logger
}

// New creates an Embedder that validates vectors against the given
// dimension. A nil logger falls back to slog.Default().
func New(embedder ai.Embedder, dimension int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		embedder:  embedder,
		dimension: dimension,
		cache:     newLRUCache(DefaultCacheSize),
		logger:    logger,
	}
}

// EmbedQuery returns the unit-normalized embedding for the given text.
// The cache key is the whitespace-canonicalized text, so trivially
// reformatted repeats of the same prompt reuse the cached vector.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := canonicalKey(text)
	if key == "" {
		return nil, ErrEmptyText
	}

	if cached, ok := e.cache.get(key); ok {
		e.logger.Debug("embedding cache hit", "text_length", len(key))
		return cached, nil
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(key, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	vector, err := UnitNormalize(resp.Embeddings[0].Embedding, e.dimension)
	if err != nil {
		return nil, err
	}

	e.cache.put(key, vector)
	return vector, nil
}

// UnitNormalize checks the vector against the expected dimension and scales
// it to unit length. Dimension mismatches fail loudly; the vector is never
// silently padded or truncated.
func UnitNormalize(vector []float32, expectedDim int) ([]float32, error) {
	if len(vector) != expectedDim {
		return nil, fmt.Errorf("%w: got %d, expected %d",
			ErrDimensionMismatch, len(vector), expectedDim)
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		return nil, ErrZeroNorm
	}

	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized, nil
}

// DotProduct computes the inner product of two vectors. For unit-length
// vectors this equals their cosine similarity.
func DotProduct(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := range n {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// canonicalKey collapses whitespace so cosmetic reformatting of the same
// prompt maps to one cache entry.
func canonicalKey(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
