package ranking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSimilarity answers from a fixed table keyed by "a|b" and counts calls.
type stubSimilarity struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
	delay  time.Duration
	calls  int
}

func (s *stubSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[a+"|"+b], nil
}

func (s *stubSimilarity) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestWeights(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)

	tests := []struct {
		name    string
		weights Weights
	}{
		{name: "sum below one", weights: Weights{Skill: 0.5}},
		{name: "negative weight", weights: Weights{Skill: 1.2, Experience: -0.2}},
		{name: "not a number", weights: Weights{Skill: math.NaN(), Experience: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			assert.ErrorIs(t, err, ErrInvalidWeights)
		})
	}
}

func TestNormalizeSkill(t *testing.T) {
	assert.Equal(t, "python", NormalizeSkill("  Python "))
	assert.Equal(t, "machine learning", NormalizeSkill("Machine\tLearning"))
	assert.Equal(t, "cafe", NormalizeSkill("Café"))
	assert.Equal(t, []string{"go", "sql"}, normalizeSkills([]string{"Go", "", "SQL", "go "}))
}

func TestSkillMatcherExact(t *testing.T) {
	m := NewSkillMatcher(nil, 0, "", 0)

	got := m.Match(context.Background(), []string{"Python", "SQL", "AWS"}, []string{"python", "sql", "docker"})

	assert.InDelta(t, 2.0/3.0, got.Score, 1e-9)
	assert.Equal(t, []string{"python", "sql"}, got.Matched)
	assert.Equal(t, []string{"docker"}, got.Missing)
	assert.Equal(t, 2, got.Exact)
	assert.Zero(t, got.Semantic)
	assert.NoError(t, got.Err)
}

func TestSkillMatcherEmptyRequired(t *testing.T) {
	m := NewSkillMatcher(&stubSimilarity{}, 0, "", 0)

	got := m.Match(context.Background(), []string{"go"}, nil)

	assert.Zero(t, got.Score)
	assert.Empty(t, got.Matched)
	assert.Empty(t, got.Missing)
	assert.NotNil(t, got.Missing)
}

func TestSkillMatcherSemanticFallback(t *testing.T) {
	provider := &stubSimilarity{scores: map[string]float64{
		"postgresql|postgres": 0.93,
		"k8s|docker":          0.5,
		"k8s|kubernetes":      0.8,
	}}
	m := NewSkillMatcher(provider, 0, StrategyGreedy, 0)

	got := m.Match(context.Background(),
		[]string{"Go", "Postgres", "Docker", "Kubernetes"},
		[]string{"go", "postgresql", "k8s"},
	)

	// 0.8 is not strictly above the threshold.
	assert.Equal(t, []string{"go", "postgresql"}, got.Matched)
	assert.Equal(t, []string{"k8s"}, got.Missing)
	assert.Equal(t, 1, got.Exact)
	assert.Equal(t, 1, got.Semantic)
	assert.InDelta(t, 2.0/3.0, got.Score, 1e-9)
}

func TestSkillMatcherGreedyVersusOptimal(t *testing.T) {
	// Greedy gives "aws" to "cloud" first and leaves "devops" with nothing;
	// the optimal strategy finds a pairing that covers both.
	scores := map[string]float64{
		"cloud|aws":      0.9,
		"cloud|gcp":      0.85,
		"devops|aws":     0.9,
		"devops|ansible": 0.1,
	}
	candidate := []string{"aws", "gcp"}
	required := []string{"cloud", "devops"}

	greedy := NewSkillMatcher(&stubSimilarity{scores: scores}, 0, StrategyGreedy, 0).
		Match(context.Background(), candidate, required)
	assert.Equal(t, []string{"cloud"}, greedy.Matched)
	assert.Equal(t, []string{"devops"}, greedy.Missing)
	assert.InDelta(t, 0.5, greedy.Score, 1e-9)

	optimal := NewSkillMatcher(&stubSimilarity{scores: scores}, 0, StrategyOptimal, 0).
		Match(context.Background(), candidate, required)
	assert.Equal(t, []string{"cloud", "devops"}, optimal.Matched)
	assert.Empty(t, optimal.Missing)
	assert.InDelta(t, 1.0, optimal.Score, 1e-9)
}

func TestSkillMatcherProviderUnavailable(t *testing.T) {
	provider := &stubSimilarity{err: errors.New("connection refused")}
	m := NewSkillMatcher(provider, 0, StrategyGreedy, 0)

	got := m.Match(context.Background(), []string{"python", "pandas"}, []string{"python", "numpy"})

	assert.Equal(t, []string{"python"}, got.Matched)
	assert.Equal(t, []string{"numpy"}, got.Missing)
	assert.InDelta(t, 0.5, got.Score, 1e-9)
	assert.ErrorIs(t, got.Err, ErrProviderUnavailable)
}

func TestSkillMatcherProviderTimeout(t *testing.T) {
	provider := &stubSimilarity{
		scores: map[string]float64{"numpy|pandas": 0.95},
		delay:  time.Second,
	}
	m := NewSkillMatcher(provider, 0, StrategyGreedy, 10*time.Millisecond)

	got := m.Match(context.Background(), []string{"pandas"}, []string{"numpy"})

	assert.Zero(t, got.Score)
	assert.Equal(t, []string{"numpy"}, got.Missing)
	assert.ErrorIs(t, got.Err, ErrProviderUnavailable)
	assert.ErrorIs(t, got.Err, context.DeadlineExceeded)
}

func TestSkillMatcherMonotonic(t *testing.T) {
	provider := &stubSimilarity{scores: map[string]float64{"numpy|python": 0.9}}
	m := NewSkillMatcher(provider, 0, StrategyGreedy, 0)
	candidate := []string{"python"}

	before := m.Match(context.Background(), candidate, []string{"numpy", "rust"})
	after := m.Match(context.Background(), candidate, []string{"numpy", "rust", "python"})

	assert.GreaterOrEqual(t, after.Score, before.Score)
}

func TestSkillMatcherExactSkillBacksSemanticMatch(t *testing.T) {
	scores := map[string]float64{"numpy|python": 0.9}

	for _, strategy := range []SkillStrategy{StrategyGreedy, StrategyOptimal} {
		t.Run(string(strategy), func(t *testing.T) {
			provider := &stubSimilarity{scores: scores}
			got := NewSkillMatcher(provider, 0, strategy, 0).
				Match(context.Background(), []string{"Python"}, []string{"python", "numpy"})

			assert.Equal(t, []string{"numpy", "python"}, got.Matched)
			assert.Empty(t, got.Missing)
			assert.Equal(t, 1, got.Exact)
			assert.Equal(t, 1, got.Semantic)
			assert.InDelta(t, 1.0, got.Score, 1e-9)
			assert.NoError(t, got.Err)
		})
	}
}

func TestParseSkillStrategy(t *testing.T) {
	s, err := ParseSkillStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyGreedy, s)

	s, err = ParseSkillStrategy(" Optimal ")
	require.NoError(t, err)
	assert.Equal(t, StrategyOptimal, s)

	_, err = ParseSkillStrategy("hungarian")
	assert.Error(t, err)
}

func TestMaxBipartiteMatching(t *testing.T) {
	edges := [][]int{{0, 1}, {0}, {1, 2}}
	owner := maxBipartiteMatching(edges, 3)

	matched := 0
	for _, i := range owner {
		if i >= 0 {
			matched++
		}
	}
	assert.Equal(t, 3, matched)
	assert.Equal(t, 1, owner[0])
}

func TestMatchExperience(t *testing.T) {
	tests := []struct {
		name      string
		candidate float64
		required  float64
		expect    float64
		wantErr   bool
	}{
		{name: "meets requirement", candidate: 5, required: 5, expect: 1},
		{name: "exceeds requirement", candidate: 12, required: 5, expect: 1},
		{name: "unset requirement", candidate: 0, required: 0, expect: 0},
		{name: "negative requirement", candidate: 3, required: -1, expect: 0},
		{name: "half of requirement", candidate: 2.5, required: 5, expect: math.Log(1.5) / math.Log(2)},
		{name: "no experience", candidate: 0, required: 5, expect: 0},
		{name: "negative candidate", candidate: -2, required: 5, expect: 0, wantErr: true},
		{name: "nan candidate", candidate: math.NaN(), required: 5, expect: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchExperience(tt.candidate, tt.required)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
			assert.InDelta(t, tt.expect, got, 1e-9)
		})
	}

	got, err := MatchExperience(2.5, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.585, got, 1e-3)
}

func TestEducationLevel(t *testing.T) {
	tests := []struct {
		input  string
		expect int
	}{
		{"High School Diploma", LevelHighSchool},
		{"Diploma in Nursing", LevelAssociate},
		{"high school", LevelHighSchool},
		{"Associate of Arts", LevelAssociate},
		{"Bachelor of Science", LevelBachelor},
		{"B.Tech in CSE", LevelBachelor},
		{"Master's Degree", LevelMaster},
		{"MCA", LevelMaster},
		{"PhD in Physics", LevelDoctorate},
		{"Doctorate", LevelDoctorate},
		{"Master's after a Bachelor's", LevelMaster},
		{"bootcamp", LevelUnknown},
		{"", LevelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expect, EducationLevel(tt.input))
		})
	}
}

func TestMatchEducation(t *testing.T) {
	assert.Equal(t, 1.0, MatchEducation("Master's Degree", "bachelor"))
	assert.Equal(t, 1.0, MatchEducation("Bachelor", "Bachelor"))
	assert.InDelta(t, 0.5*3.0/4.0, MatchEducation("bachelor", "master"), 1e-9)
	assert.Zero(t, MatchEducation("unknown", "master"))
	assert.Zero(t, MatchEducation("PhD", ""))
	assert.Zero(t, MatchEducation("PhD", "certificate"))
}

func TestMatchLocation(t *testing.T) {
	assert.Equal(t, 1.0, MatchLocation("Seattle", "seattle"))
	assert.Equal(t, 1.0, MatchLocation(" Austin ", "AUSTIN"))
	assert.Equal(t, 1.0, MatchLocation("Zürich", "ZÜRICH"))
	assert.Zero(t, MatchLocation("", "Seattle"))
	assert.Zero(t, MatchLocation("Seattle", "  "))
	assert.Zero(t, MatchLocation("Seattle", "Tacoma"))
}

func TestTokenize(t *testing.T) {
	got := tokenize("The engineer writes C++, C# and Node.js with a Résumé.")
	assert.Equal(t, []string{"engineer", "writes", "c++", "c#", "node.js", "resume"}, got)
}

func TestTextSimilarity(t *testing.T) {
	job := "Backend engineer with Python and SQL experience building data pipelines"

	same := TextSimilarity(job, job)
	assert.InDelta(t, 1.0, same, 1e-9)

	related := TextSimilarity("Python developer, SQL, pipelines", job)
	unrelated := TextSimilarity("Pastry chef specialising in croissants", job)
	assert.Greater(t, related, unrelated)
	assert.Zero(t, unrelated)

	assert.Zero(t, TextSimilarity("", job))
	assert.Zero(t, TextSimilarity("the and of", "with the"))
}

func TestTextModelFailures(t *testing.T) {
	empty := FitTextModel("the", "a")
	_, err := empty.Similarity("the", "a")
	assert.ErrorIs(t, err, ErrVectorizationFailure)

	model := FitTextModel("python sql", "golang grpc")
	_, err = model.Vectorize("croissants")
	assert.ErrorIs(t, err, ErrVectorizationFailure)

	sim, err := model.Similarity("python", "python sql")
	require.NoError(t, err)
	assert.Greater(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)
}

func TestAggregate(t *testing.T) {
	w := DefaultWeights()

	assert.InDelta(t, 1.0, Aggregate(Scores{1, 1, 1, 1, 1}, w), 1e-9)
	assert.Zero(t, Aggregate(Scores{}, w))
	assert.InDelta(t, 0.35+0.25*0.5, Aggregate(Scores{Skill: 1, Experience: 0.5}, w), 1e-9)

	// The aggregator does not enforce the weight sum.
	assert.InDelta(t, 0.2, Aggregate(Scores{Skill: 1}, Weights{Skill: 0.2}), 1e-9)
}
