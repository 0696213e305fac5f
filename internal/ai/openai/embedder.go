package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// noToken is sent to local OpenAI-compatible servers that do not check auth.
const noToken = "none"

// Embedder produces embeddings through any OpenAI-compatible API (OpenAI,
// Ollama, LM Studio, vLLM).
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *zap.Logger
}

// NewEmbedder creates an embedder for the given host and model. An empty
// token is replaced with a placeholder for servers without auth.
func NewEmbedder(host, model, token string, logger *zap.Logger) (*Embedder, error) {
	host = strings.TrimSpace(host)
	model = strings.TrimSpace(model)
	if host == "" {
		return nil, errors.New("openai embedding host is required")
	}
	if model == "" {
		return nil, errors.New("openai embedding model is required")
	}
	if token = strings.TrimSpace(token); token == "" {
		token = noToken
	}

	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return newEmbedder(embedder, model, logger), nil
}

func newEmbedder(embedder embeddings.Embedder, model string, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{embedder: embedder, model: model, logger: logger}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedTexts embeds texts in one batch request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", zap.Int("count", len(texts)))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	return vectors, nil
}
