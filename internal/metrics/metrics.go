package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "talent_ranker"

// Provider lookup outcomes.
const (
	LookupOK     = "ok"
	LookupFailed = "failed"
)

// Metrics groups the ranking collectors. A nil *Metrics is valid and records
// nothing, so callers never need to check for it.
type Metrics struct {
	registry *prometheus.Registry

	RankingsTotal      prometheus.Counter
	CandidatesScored   prometheus.Counter
	Degradations       *prometheus.CounterVec
	ProviderLookups    *prometheus.CounterVec
	RankingDuration    prometheus.Histogram
	EmbeddingCacheHits *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RankingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rankings_total",
			Help:      "Total number of completed ranking calls",
		}),
		CandidatesScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_scored_total",
			Help:      "Total number of scored candidates",
		}),
		Degradations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradations_total",
			Help:      "Score dimensions that fell back to zero, by dimension",
		}, []string{"dimension"}),
		ProviderLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_lookups_total",
			Help:      "Semantic similarity lookups, by outcome",
		}, []string{"result"}),
		RankingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "Duration of ranking calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		EmbeddingCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups, by outcome",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRanking records one finished ranking call.
func (m *Metrics) ObserveRanking(candidates int, took time.Duration) {
	if m == nil {
		return
	}
	m.RankingsTotal.Inc()
	m.CandidatesScored.Add(float64(candidates))
	m.RankingDuration.Observe(took.Seconds())
}

// ObserveDegradation records a dimension that fell back to zero.
func (m *Metrics) ObserveDegradation(dimension string) {
	if m == nil {
		return
	}
	m.Degradations.WithLabelValues(dimension).Inc()
}

// ObserveProviderLookup records a similarity lookup outcome.
func (m *Metrics) ObserveProviderLookup(result string) {
	if m == nil {
		return
	}
	m.ProviderLookups.WithLabelValues(result).Inc()
}

// ObserveCache records an embedding cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EmbeddingCacheHits.WithLabelValues(result).Inc()
}

// WriteToFile dumps the registry in the text exposition format, for node
// exporter's textfile collector.
func (m *Metrics) WriteToFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %q: %w", path, err)
	}
	return nil
}
