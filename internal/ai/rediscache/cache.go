package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/metrics"
)

const (
	defaultPrefix = "talent-ranker:embedding:"
	defaultTTL    = 7 * 24 * time.Hour
)

// Config controls cache entries. Zero values select the defaults.
type Config struct {
	TTL    time.Duration
	Prefix string
}

// Embedder decorates another embedder with a Redis-backed vector cache.
// Redis failures are logged and the call falls through to the wrapped
// embedder, so a missing cache never fails a ranking.
type Embedder struct {
	next    ai.Embedder
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient opens a Redis client for addr and checks the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// New wraps next with a cache stored in client.
func New(next ai.Embedder, client redis.UniversalClient, cfg Config, logger *zap.Logger, m *metrics.Metrics) (*Embedder, error) {
	if next == nil {
		return nil, ai.ErrEmbedderRequired
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		next:    next,
		client:  client,
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
		logger:  logger,
		metrics: m,
	}, nil
}

// Model returns the wrapped embedder's model.
func (e *Embedder) Model() string {
	return e.next.Model()
}

// EmbedTexts returns cached vectors where present and embeds the rest in a
// single call to the wrapped embedder.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = e.key(text)
	}

	out := make([][]float32, len(texts))
	cached, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		e.logger.Warn("embedding cache read failed", zap.Error(err))
		cached = nil
	}

	var missing []int
	for i := range texts {
		if vector, ok := decode(cached, i); ok {
			out[i] = vector
			e.metrics.ObserveCache(true)
			continue
		}
		e.metrics.ObserveCache(false)
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}

	vectors, err := e.next.EmbedTexts(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(pending))
	}

	pipe := e.client.Pipeline()
	for j, i := range missing {
		out[i] = vectors[j]
		payload, err := json.Marshal(vectors[j])
		if err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
		pipe.Set(ctx, keys[i], payload, e.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	return out, nil
}

func (e *Embedder) key(text string) string {
	return e.prefix + e.next.Model() + ":" + text
}

func decode(values []any, i int) ([]float32, bool) {
	if i >= len(values) || values[i] == nil {
		return nil, false
	}
	raw, ok := values[i].(string)
	if !ok {
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil || len(vector) == 0 {
		return nil, false
	}
	return vector, true
}
