package filtering

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/talent-ranker/internal/intake"
	"github.com/spigell/talent-ranker/internal/ranking"
)

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes candidates listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, r *intake.Results) (*intake.Results, Step, error) {
	initial := r.Len()
	if f.path == "" {
		return r, Step{Initial: initial, Left: r.Len()}, nil
	}

	excluded, err := intake.ExcludedFromFile(f.path)
	if err != nil {
		return r, Step{}, fmt.Errorf("getting excluded candidates from file: %w", err)
	}

	removed := r.Exclude(excluded.IDs())
	if len(removed) > 0 {
		deps.Logger.Info("excluding candidates based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_candidates", removed),
			zap.Int("candidates_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(removed), Left: r.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return f.status(f.Name(), details)
}

type mustHaveSkillsFilter struct {
	toggle
	skills []string
}

// NewMustHaveSkills creates a filter that keeps only candidates who matched
// every listed skill, exactly or semantically.
func NewMustHaveSkills() Filter {
	return &mustHaveSkillsFilter{}
}

func (f *mustHaveSkillsFilter) Name() string { return "must_have_skills" }

func (f *mustHaveSkillsFilter) Validate(cfg *Config) error {
	f.skills = nil
	if cfg == nil {
		return nil
	}
	for _, skill := range cfg.MustHaveSkills {
		if normalized := ranking.NormalizeSkill(skill); normalized != "" && !slices.Contains(f.skills, normalized) {
			f.skills = append(f.skills, normalized)
		}
	}
	return nil
}

func (f *mustHaveSkillsFilter) Apply(_ context.Context, deps Deps, r *intake.Results) (*intake.Results, Step, error) {
	initial := r.Len()
	if len(f.skills) == 0 {
		return r, Step{Initial: initial, Left: r.Len()}, nil
	}

	removed := r.Keep(func(item *intake.Result) bool {
		for _, skill := range f.skills {
			if !slices.Contains(item.MatchedSkills, skill) {
				return false
			}
		}
		return true
	})
	if len(removed) > 0 {
		deps.Logger.Info("excluding candidates missing required skills",
			zap.Strings("must_have_skills", f.skills),
			zap.Strings("excluded_candidates", removed),
			zap.Int("candidates_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(removed), Left: r.Len()}, nil
}

func (f *mustHaveSkillsFilter) Status() Status {
	details := map[string]string{}
	if len(f.skills) > 0 {
		details["skills"] = strings.Join(f.skills, ", ")
	}
	return f.status(f.Name(), details)
}

type minimumScoreFilter struct {
	toggle
	minimum float64
}

// NewMinimumScore creates a filter that drops candidates below the minimum overall score.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_score" }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg == nil {
		return nil
	}
	if cfg.MinimumScore < 0 || cfg.MinimumScore > 1 {
		return errors.New("minimum score must be within [0, 1]")
	}
	f.minimum = cfg.MinimumScore
	return nil
}

func (f *minimumScoreFilter) Apply(_ context.Context, deps Deps, r *intake.Results) (*intake.Results, Step, error) {
	initial := r.Len()
	if f.minimum == 0 {
		return r, Step{Initial: initial, Left: r.Len()}, nil
	}

	removed := r.Keep(func(item *intake.Result) bool {
		return item.OverallScore >= f.minimum
	})
	if len(removed) > 0 {
		deps.Logger.Info("excluding candidates below minimum score",
			zap.Float64("minimum_score", f.minimum),
			zap.Strings("excluded_candidates", removed),
			zap.Int("candidates_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(removed), Left: r.Len()}, nil
}

func (f *minimumScoreFilter) Status() Status {
	return f.status(f.Name(), map[string]string{
		"minimum_score": strconv.FormatFloat(f.minimum, 'f', -1, 64),
	})
}

type topFilter struct {
	toggle
	top int
}

// NewTop creates a filter that keeps the best N candidates. Zero keeps all.
func NewTop() Filter {
	return &topFilter{}
}

func (f *topFilter) Name() string { return "top" }

func (f *topFilter) Validate(cfg *Config) error {
	f.top = 0
	if cfg == nil {
		return nil
	}
	if cfg.Top < 0 {
		return errors.New("top must not be negative")
	}
	f.top = cfg.Top
	return nil
}

func (f *topFilter) Apply(_ context.Context, deps Deps, r *intake.Results) (*intake.Results, Step, error) {
	initial := r.Len()
	if f.top == 0 {
		return r, Step{Initial: initial, Left: r.Len()}, nil
	}

	removed := r.Truncate(f.top)
	if len(removed) > 0 {
		deps.Logger.Debug("keeping top candidates",
			zap.Int("top", f.top),
			zap.Strings("excluded_candidates", removed),
		)
	}

	return r, Step{Initial: initial, Dropped: len(removed), Left: r.Len()}, nil
}

func (f *topFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"top": strconv.Itoa(f.top)})
}
