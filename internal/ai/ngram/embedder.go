// Package ngram is an offline embedder that hashes character trigrams into a
// fixed-size vector. Only spelling variants clear the default 0.8 semantic
// threshold ("microservice" and "microservices" score about 0.9). Shorter
// stems score lower ("postgres" and "postgresql" about 0.78), and synonyms
// with different spelling ("k8s", "kubernetes") score nothing.
package ngram

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const (
	// DefaultDimensions is the vector size used when none is configured.
	DefaultDimensions = 512
	model             = "char-trigram"
	size              = 3
)

// Embedder hashes character n-grams. It holds no mutable state.
type Embedder struct {
	dims int
}

// New returns an embedder producing vectors of dims components.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Model identifies the embedding scheme.
func (e *Embedder) Model() string {
	return model
}

// EmbedTexts returns one unit vector per text. Blank texts produce zero vectors.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *Embedder) embed(text string) []float32 {
	vector := make([]float32, e.dims)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		padded := []rune("^" + word + "$")
		for i := 0; i+size <= len(padded); i++ {
			h := fnv.New32a()
			h.Write([]byte(string(padded[i : i+size])))
			vector[h.Sum32()%uint32(e.dims)]++
		}
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vector
	}

	norm := float32(math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}
