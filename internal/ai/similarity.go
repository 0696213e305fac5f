package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/metrics"
)

// EmbeddingSimilarity scores two phrases by the cosine of their embeddings.
// Vectors are cached in memory for the life of the provider and concurrent
// requests for the same phrase share one embedder call.
type EmbeddingSimilarity struct {
	embedder Embedder
	logger   *zap.Logger
	metrics  *metrics.Metrics

	group   singleflight.Group
	cacheMu sync.RWMutex
	cache   map[string][]float32
}

// NewEmbeddingSimilarity wraps embedder. Logger and metrics may be nil.
func NewEmbeddingSimilarity(embedder Embedder, log *zap.Logger, m *metrics.Metrics) (*EmbeddingSimilarity, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	return &EmbeddingSimilarity{
		embedder: embedder,
		logger:   logger.WithFields(log, zap.String(logger.FieldModel, embedder.Model())),
		metrics:  m,
		cache:    make(map[string][]float32),
	}, nil
}

// Similarity returns the cosine similarity of a and b, with negative values
// clamped to 0.
func (s *EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := s.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.vector(ctx, b)
	if err != nil {
		return 0, err
	}

	sim, err := Cosine(va, vb)
	if err != nil {
		return 0, fmt.Errorf("compare %q and %q: %w", a, b, err)
	}
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}

	return sim, nil
}

// Warm embeds every uncached text in a single batch call.
func (s *EmbeddingSimilarity) Warm(ctx context.Context, texts []string) error {
	pending := make([]string, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))

	s.cacheMu.RLock()
	for _, text := range texts {
		key := cacheKey(text)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := s.cache[key]; !ok {
			pending = append(pending, key)
		}
	}
	s.cacheMu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedTexts(ctx, pending)
	if err != nil {
		return fmt.Errorf("warm embeddings: %w", err)
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("warm embeddings: got %d vectors for %d texts", len(vectors), len(pending))
	}

	s.cacheMu.Lock()
	for i, key := range pending {
		s.cache[key] = vectors[i]
	}
	s.cacheMu.Unlock()

	s.logger.Debug("embeddings warmed", zap.Int("count", len(pending)))

	return nil
}

// CacheSize returns the number of cached vectors.
func (s *EmbeddingSimilarity) CacheSize() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}

func (s *EmbeddingSimilarity) vector(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if key == "" {
		return nil, ErrEmptyText
	}

	s.cacheMu.RLock()
	cached, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok {
		s.metrics.ObserveCache(true)
		return cached, nil
	}
	s.metrics.ObserveCache(false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.cacheMu.RLock()
		existing, ok := s.cache[key]
		s.cacheMu.RUnlock()
		if ok {
			return existing, nil
		}

		vectors, err := s.embedder.EmbedTexts(ctx, []string{key})
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", key, err)
		}
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("embed %q: embedder returned no vector", key)
		}

		s.cacheMu.Lock()
		s.cache[key] = vectors[0]
		s.cacheMu.Unlock()

		return vectors[0], nil
	})
	if err != nil {
		s.logger.Debug("embedding failed", zap.String("text", key), zap.Error(err))
		return nil, err
	}

	return v.([]float32), nil
}

func cacheKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
