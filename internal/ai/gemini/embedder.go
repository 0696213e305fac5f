package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/talent-ranker/internal/utils"
)

const (
	defaultModel      = "text-embedding-004"
	defaultMaxRetries = 3
	taskType          = "SEMANTIC_SIMILARITY"
	retryBaseDelay    = time.Second
	maxRetryDelay     = 30 * time.Second
)

var (
	sleep = utils.WaitFor

	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)
)

type embedContentAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces embeddings with the Gemini API.
type Embedder struct {
	models     embedContentAPI
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// EmbedTexts embeds all texts in one request, retrying temporary failures.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, errors.New("text to embed must not be empty")
		}
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		})
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
		if err == nil {
			return vectors(resp, len(texts))
		}
		lastErr = err

		retry, delay := retryable(err)
		if !retry || attempt == e.maxRetries {
			break
		}
		if delay == 0 {
			delay = utils.Backoff(retryBaseDelay, attempt, maxRetryDelay)
		}

		e.logger.Warn("gemini embed content failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func vectors(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", got, want)
	}

	out := make([][]float32, want)
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// retryable reports whether err is worth another attempt and how long the
// server asked to wait. Quota errors asking for a long pause are not retried.
func retryable(err error) (bool, time.Duration) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false, 0
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		delay := retryAfter(apiErr.Message)
		if delay > maxRetryDelay {
			return false, 0
		}
		return true, delay
	case apiErr.Code >= http.StatusInternalServerError:
		return true, 0
	default:
		return false, 0
	}
}

func retryAfter(message string) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(message)
	if len(match) != 2 {
		return 0
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
