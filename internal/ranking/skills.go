package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spigell/talent-ranker/internal/metrics"
)

// DefaultSemanticThreshold is the similarity a skill pair must exceed to count
// as a semantic match.
const DefaultSemanticThreshold = 0.8

// Similarity scores how close two skill phrases are, in [0,1].
type Similarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// SkillStrategy selects how required skills are paired with candidate skills
// during the semantic fallback.
type SkillStrategy string

const (
	// StrategyGreedy pairs each required skill with the first candidate skill
	// above the threshold.
	StrategyGreedy SkillStrategy = "greedy"
	// StrategyOptimal finds the largest possible set of pairs above the threshold.
	StrategyOptimal SkillStrategy = "optimal"
)

// ParseSkillStrategy converts a configuration value into a SkillStrategy.
// An empty value selects the greedy strategy.
func ParseSkillStrategy(s string) (SkillStrategy, error) {
	switch SkillStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyGreedy:
		return StrategyGreedy, nil
	case StrategyOptimal:
		return StrategyOptimal, nil
	default:
		return "", fmt.Errorf("unknown skill strategy %q (expected %q or %q)", s, StrategyGreedy, StrategyOptimal)
	}
}

// SkillMatch is the outcome of comparing candidate skills with required ones.
type SkillMatch struct {
	Score    float64
	Matched  []string
	Missing  []string
	Exact    int
	Semantic int
	// Err is set when semantic lookups failed and were treated as no match.
	Err error
}

// SkillMatcher computes skill overlap with an optional semantic fallback.
type SkillMatcher struct {
	provider  Similarity
	threshold float64
	strategy  SkillStrategy
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewSkillMatcher returns a matcher. A nil provider disables the semantic
// fallback and leaves exact matching only.
func NewSkillMatcher(provider Similarity, threshold float64, strategy SkillStrategy, timeout time.Duration) *SkillMatcher {
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultSemanticThreshold
	}
	if strategy == "" {
		strategy = StrategyGreedy
	}

	return &SkillMatcher{
		provider:  provider,
		threshold: threshold,
		strategy:  strategy,
		timeout:   timeout,
	}
}

// Match compares candidateSkills with requiredSkills. Provider errors never
// fail the match; they only suppress the affected semantic pairs.
func (m *SkillMatcher) Match(ctx context.Context, candidateSkills, requiredSkills []string) SkillMatch {
	required := normalizeSkills(requiredSkills)
	if len(required) == 0 {
		return SkillMatch{Matched: []string{}, Missing: []string{}}
	}

	candidate := normalizeSkills(candidateSkills)
	owned := make(map[string]struct{}, len(candidate))
	for _, skill := range candidate {
		owned[skill] = struct{}{}
	}

	result := SkillMatch{}
	matched := make(map[string]struct{}, len(required))
	unmatched := make([]string, 0, len(required))
	for _, skill := range required {
		if _, ok := owned[skill]; ok {
			matched[skill] = struct{}{}
			result.Exact++
			continue
		}
		unmatched = append(unmatched, skill)
	}
	sort.Strings(unmatched)

	// The semantic pool is every candidate skill, including ones that already
	// matched exactly, so adding a requirement the candidate owns can never
	// take a semantic partner away from another requirement.
	if m != nil && m.provider != nil && len(unmatched) > 0 && len(candidate) > 0 {
		var pairs map[string]string
		switch m.strategy {
		case StrategyOptimal:
			pairs, result.Err = m.optimal(ctx, unmatched, candidate)
		default:
			pairs, result.Err = m.greedy(ctx, unmatched, candidate)
		}
		for req := range pairs {
			matched[req] = struct{}{}
			result.Semantic++
		}
	}

	missing := make(map[string]struct{}, len(required))
	for _, skill := range required {
		if _, ok := matched[skill]; !ok {
			missing[skill] = struct{}{}
		}
	}

	result.Matched = sortedKeys(matched)
	result.Missing = sortedKeys(missing)
	result.Score = clamp01(float64(result.Exact+result.Semantic) / float64(len(required)))

	return result
}

// greedy walks required skills in order and takes the first candidate skill
// above the threshold. A candidate skill backs at most one semantic match.
func (m *SkillMatcher) greedy(ctx context.Context, required, candidate []string) (map[string]string, error) {
	pairs := make(map[string]string)
	used := make([]bool, len(candidate))
	var errs []error

	for _, req := range required {
		for j, skill := range candidate {
			if used[j] {
				continue
			}
			if ctx.Err() != nil {
				return pairs, errors.Join(append(errs, ctx.Err())...)
			}

			sim, err := m.lookup(ctx, req, skill)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if sim > m.threshold {
				used[j] = true
				pairs[req] = skill
				break
			}
		}
	}

	return pairs, errors.Join(errs...)
}

// optimal scores every pair and returns a maximum-cardinality matching over
// the pairs above the threshold.
func (m *SkillMatcher) optimal(ctx context.Context, required, candidate []string) (map[string]string, error) {
	edges := make([][]int, len(required))
	var errs []error

	for i, req := range required {
		for j, skill := range candidate {
			if ctx.Err() != nil {
				return map[string]string{}, errors.Join(append(errs, ctx.Err())...)
			}

			sim, err := m.lookup(ctx, req, skill)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if sim > m.threshold {
				edges[i] = append(edges[i], j)
			}
		}
	}

	owner := maxBipartiteMatching(edges, len(candidate))
	pairs := make(map[string]string)
	for j, i := range owner {
		if i >= 0 {
			pairs[required[i]] = candidate[j]
		}
	}

	return pairs, errors.Join(errs...)
}

func (m *SkillMatcher) lookup(ctx context.Context, a, b string) (float64, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	sim, err := m.provider.Similarity(ctx, a, b)
	if err != nil {
		m.metrics.ObserveProviderLookup(metrics.LookupFailed)
		return 0, fmt.Errorf("%w: %q vs %q: %w", ErrProviderUnavailable, a, b, err)
	}
	m.metrics.ObserveProviderLookup(metrics.LookupOK)

	return clamp01(sim), nil
}

// maxBipartiteMatching returns, for every right vertex, the index of the left
// vertex it is paired with or -1. It uses augmenting paths (Kuhn).
func maxBipartiteMatching(edges [][]int, right int) []int {
	owner := make([]int, right)
	for j := range owner {
		owner[j] = -1
	}

	var augment func(i int, seen []bool) bool
	augment = func(i int, seen []bool) bool {
		for _, j := range edges[i] {
			if seen[j] {
				continue
			}
			seen[j] = true
			if owner[j] < 0 || augment(owner[j], seen) {
				owner[j] = i
				return true
			}
		}
		return false
	}

	for i := range edges {
		augment(i, make([]bool, right))
	}

	return owner
}
