package ranking

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/metrics"
	"github.com/spigell/talent-ranker/internal/utils"
)

const defaultMaxLogLength = 200

// Score dimensions, as used in MatchResult.Degraded and metrics labels.
const (
	DimensionProfile    = "profile"
	DimensionSkills     = "skills"
	DimensionExperience = "experience"
	DimensionEducation  = "education"
	DimensionText       = "text"
	DimensionLocation   = "location"
)

// Ranker scores candidates against a job and orders them. It holds no state
// between calls and is safe for concurrent use.
type Ranker struct {
	weights   Weights
	workers   int
	provider  Similarity
	strategy  SkillStrategy
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
	maxLogLen int
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithWeights sets the default weights. They must pass Weights.Validate.
func WithWeights(w Weights) Option {
	return func(r *Ranker) error {
		if err := w.Validate(); err != nil {
			return err
		}
		r.weights = w
		return nil
	}
}

// WithWorkers sets the size of the scoring pool. Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(r *Ranker) error {
		if n < 1 {
			n = 1
		}
		r.workers = n
		return nil
	}
}

// WithSimilarity injects the provider used for semantic skill matching.
func WithSimilarity(s Similarity) Option {
	return func(r *Ranker) error {
		r.provider = s
		return nil
	}
}

// WithSkillStrategy selects greedy or optimal semantic matching.
func WithSkillStrategy(s SkillStrategy) Option {
	return func(r *Ranker) error {
		parsed, err := ParseSkillStrategy(string(s))
		if err != nil {
			return err
		}
		r.strategy = parsed
		return nil
	}
}

// WithSemanticThreshold sets the similarity a pair must exceed to match.
func WithSemanticThreshold(t float64) Option {
	return func(r *Ranker) error {
		if math.IsNaN(t) || t <= 0 || t > 1 {
			return fmt.Errorf("semantic threshold must be in (0,1], got %v", t)
		}
		r.threshold = t
		return nil
	}
}

// WithProviderTimeout bounds every similarity lookup. Zero disables the bound.
func WithProviderTimeout(d time.Duration) Option {
	return func(r *Ranker) error {
		if d < 0 {
			d = 0
		}
		r.timeout = d
		return nil
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		r.logger = logger
		return nil
	}
}

// WithMetrics records ranking metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Ranker) error {
		r.metrics = m
		return nil
	}
}

// WithMaxLogLength limits how much resume text ends up in debug logs.
func WithMaxLogLength(n int) Option {
	return func(r *Ranker) error {
		if n <= 0 {
			n = defaultMaxLogLength
		}
		r.maxLogLen = n
		return nil
	}
}

// New creates a Ranker with default weights, greedy skill matching and one
// worker per CPU.
func New(opts ...Option) (*Ranker, error) {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}

	r := &Ranker{
		weights:   DefaultWeights(),
		workers:   workers,
		strategy:  StrategyGreedy,
		threshold: DefaultSemanticThreshold,
		logger:    zap.NewNop(),
		maxLogLen: defaultMaxLogLength,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Weights returns the default weights of the ranker.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Rank scores candidates with the configured weights.
func (r *Ranker) Rank(ctx context.Context, job *Job, candidates []*Candidate) ([]MatchResult, error) {
	return r.RankWithWeights(ctx, job, candidates, r.weights)
}

// RankWithWeights scores every candidate against job and returns the results
// ordered by overall score, highest first. Candidates with equal scores keep
// their input order. A malformed candidate is scored with degraded dimensions,
// never dropped. Only a nil job, invalid weights or a cancelled context fail
// the call.
func (r *Ranker) RankWithWeights(ctx context.Context, job *Job, candidates []*Candidate, weights Weights) ([]MatchResult, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrJobRequired)
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	results := make([]MatchResult, len(candidates))
	if len(candidates) == 0 {
		r.logger.Info("no candidates to rank")
		return results, nil
	}

	sc := r.newScorer(job, candidates, weights)

	size := r.workers
	if size > len(candidates) {
		size = len(candidates)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create scoring pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[i] = sc.score(ctx, i, candidate)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit candidate %d: %w", i, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Warn("ranking abandoned", zap.Error(err))
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OverallScore > results[j].OverallScore
	})

	took := time.Since(started)
	r.metrics.ObserveRanking(len(results), took)
	r.logger.Info("ranking completed", append(
		logger.RankingFields(job.Title, string(r.strategy), len(results)),
		zap.Int("workers", size),
		zap.Int64("duration_ms", took.Milliseconds()),
	)...)

	return results, nil
}

// scorer carries the per-job state shared read-only by all workers.
type scorer struct {
	job     *Job
	weights Weights
	skills  *SkillMatcher
	text    *TextModel
	jobVec  TermVector
	jobErr  error
	logger  *zap.Logger
	metrics *metrics.Metrics
	logLen  int
}

// newScorer fits the text model over the job and every resume before any
// candidate is scored.
func (r *Ranker) newScorer(job *Job, candidates []*Candidate, weights Weights) *scorer {
	docs := make([]string, 0, len(candidates)+1)
	docs = append(docs, job.Description)
	for _, c := range candidates {
		if c != nil {
			docs = append(docs, c.ResumeText)
		}
	}

	model := FitTextModel(docs...)
	jobVec, jobErr := model.Vectorize(job.Description)

	skills := NewSkillMatcher(r.provider, r.threshold, r.strategy, r.timeout)
	skills.metrics = r.metrics

	r.logger.Debug("text model fitted",
		zap.Int("documents", len(docs)),
		zap.Int("vocabulary", model.VocabularySize()),
	)

	return &scorer{
		job:     job,
		weights: weights,
		skills:  skills,
		text:    model,
		jobVec:  jobVec,
		jobErr:  jobErr,
		logger:  r.logger,
		metrics: r.metrics,
		logLen:  r.maxLogLen,
	}
}

func (s *scorer) score(ctx context.Context, idx int, c *Candidate) MatchResult {
	var degraded []string
	degrade := func(dimension string, err error) {
		degraded = append(degraded, fmt.Sprintf("%s: %v", dimension, err))
		s.metrics.ObserveDegradation(dimension)
	}

	if c == nil {
		degrade(DimensionProfile, fmt.Errorf("%w: missing candidate profile", ErrInvalidInput))
		c = &Candidate{}
	}

	ref := CandidateRef(idx, c)

	skills := s.skills.Match(ctx, c.Skills, s.job.RequiredSkills)
	if skills.Err != nil {
		degrade(DimensionSkills, skills.Err)
	} else if len(c.Skills) == 0 && len(skills.Missing) > 0 {
		degrade(DimensionSkills, fmt.Errorf("%w: candidate lists no skills", ErrInvalidInput))
	}

	experience, err := MatchExperience(c.TotalExperience, s.job.RequiredExperience)
	if err != nil {
		degrade(DimensionExperience, err)
	}

	education := MatchEducation(c.HighestQualification, s.job.RequiredEducation)

	text, err := s.textScore(c.ResumeText)
	if err != nil {
		degrade(DimensionText, err)
	}

	location := MatchLocation(c.Location, s.job.Location)

	scores := Scores{
		Skill:      skills.Score,
		Experience: experience,
		Education:  education,
		Text:       text,
		Location:   location,
	}

	result := MatchResult{
		CandidateRef:        ref,
		SkillScore:          scores.Skill,
		ExperienceScore:     scores.Experience,
		EducationScore:      scores.Education,
		TextSimilarityScore: scores.Text,
		LocationScore:       scores.Location,
		OverallScore:        Aggregate(scores, s.weights),
		MatchedSkills:       skills.Matched,
		MissingSkills:       skills.Missing,
		Degraded:            degraded,
	}

	s.logger.Debug("candidate scored",
		zap.String("candidate", ref),
		zap.Float64("overall", result.OverallScore),
		zap.Int("exact_skills", skills.Exact),
		zap.Int("semantic_skills", skills.Semantic),
		zap.Strings("degraded", degraded),
		zap.String("resume_preview", utils.TruncateForLog(c.ResumeText, s.logLen)),
	)

	return result
}

func (s *scorer) textScore(resume string) (float64, error) {
	if s.jobErr != nil {
		return 0, fmt.Errorf("job description: %w", s.jobErr)
	}
	vec, err := s.text.Vectorize(resume)
	if err != nil {
		return 0, err
	}
	return vec.Cosine(s.jobVec), nil
}

// CandidateRef returns the identifier used for a candidate in results: its ID
// when set, otherwise its position in the input.
func CandidateRef(idx int, c *Candidate) string {
	if c != nil && c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("candidate-%d", idx)
}
