// Package fake provides deterministic local stand-ins for the embedding
// and extraction providers, used in development and load testing where
// external API calls are unwanted.
package fake

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/grambazaar/bazarsearch/internal/domain"
)

// Embedder produces deterministic unit vectors derived from the input
// text. Identical texts always map to identical vectors, and texts
// sharing words produce correlated vectors, which keeps similarity
// ranking meaningful without a real model.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a deterministic embedder with the given dimensionality.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &Embedder{dimensions: dimensions}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec := make([]float32, e.dimensions)

	// Accumulate a hash-derived basis vector per token so overlapping
	// words produce overlapping embeddings.
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(word))
		for i := 0; i < e.dimensions; i++ {
			if i > 0 && i%8 == 0 {
				sum = sha256.Sum256(sum[:])
			}
			u := binary.LittleEndian.Uint32(sum[(i%8)*4:])
			vec[i] += float32(u)/float32(math.MaxUint32)*2 - 1
		}
	}

	normalize(vec)

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(strings.Fields(text)),
		TotalTokens:  len(strings.Fields(text)),
	}, nil
}

// HealthCheck implements domain.HealthChecker. Always healthy.
func (e *Embedder) HealthCheck(context.Context) error {
	return nil
}

func normalize(vec []float32) {
	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	mag = math.Sqrt(mag)
	if mag == 0 {
		vec[0] = 1
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / mag)
	}
}
