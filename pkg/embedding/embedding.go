// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"context"
	"math"
)

// Embedder is deterministic for a given backing model. Implementations fail with an
// errs.EmbeddingService (or errs.Timeout) error instead of returning a zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NormalizeL2 scales v to unit length in place. A zero vector is left untouched.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	mag := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
}
