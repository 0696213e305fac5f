package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
	got     []string
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.got = texts
	return s.vectors, s.err
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if len(s.vectors) == 0 {
		return nil, s.err
	}
	return s.vectors[0], s.err
}

func TestEmbedTexts(t *testing.T) {
	stub := &stubEmbedder{vectors: [][]float32{{1, 0}, {0, 1}}}
	e := newEmbedder(stub, "nomic-embed-text", nil)

	vectors, err := e.EmbedTexts(context.Background(), []string{"go", "rust"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, []string{"go", "rust"}, stub.got)
	assert.Equal(t, "nomic-embed-text", e.Model())
}

func TestEmbedTextsErrors(t *testing.T) {
	failing := newEmbedder(&stubEmbedder{err: errors.New("connection refused")}, "m", nil)
	_, err := failing.EmbedTexts(context.Background(), []string{"go"})
	assert.ErrorContains(t, err, "connection refused")

	short := newEmbedder(&stubEmbedder{vectors: [][]float32{{1}}}, "m", nil)
	_, err = short.EmbedTexts(context.Background(), []string{"go", "rust"})
	assert.Error(t, err)
}

func TestNewEmbedderValidates(t *testing.T) {
	_, err := NewEmbedder("", "model", "", nil)
	assert.Error(t, err)

	_, err = NewEmbedder("http://localhost:11434/v1", " ", "", nil)
	assert.Error(t, err)

	e, err := NewEmbedder("http://localhost:11434/v1", "nomic-embed-text", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", e.Model())
}
