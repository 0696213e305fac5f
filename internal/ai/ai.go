package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyText is returned when asked to embed a blank string.
	ErrEmptyText = errors.New("text to embed must not be empty")
	// ErrEmbedderRequired is returned when a provider is built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")
)

// Embedder turns texts into vectors. Implementations must be safe for
// concurrent use and return one vector per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Cosine returns the cosine similarity of two vectors of equal length.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions mismatch: %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("zero-length vector")
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
