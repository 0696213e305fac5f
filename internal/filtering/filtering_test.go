package filtering

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/talent-ranker/internal/intake"
	"github.com/spigell/talent-ranker/internal/ranking"
)

func results() *intake.Results {
	matches := []ranking.MatchResult{
		{CandidateRef: "a", OverallScore: 0.92, MatchedSkills: []string{"python", "sql"}},
		{CandidateRef: "b", OverallScore: 0.81, MatchedSkills: []string{"python"}},
		{CandidateRef: "c", OverallScore: 0.55, MatchedSkills: []string{"python", "sql"}},
		{CandidateRef: "d", OverallScore: 0.30, MatchedSkills: []string{"sql"}},
	}
	return intake.NewResults(&ranking.Job{Title: "Data Engineer"}, nil, matches)
}

func TestRunAppliesStepsInOrder(t *testing.T) {
	dir := t.TempDir()
	excludePath := filepath.Join(dir, "excluded.json")
	excluded := &intake.ExcludedCandidates{Items: []*intake.ExcludedCandidate{{ID: "a"}}}
	if err := excluded.ToFile(excludePath); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	cfg := &Config{
		ExcludeFile:    excludePath,
		MustHaveSkills: []string{" Python "},
		MinimumScore:   0.5,
		Top:            1,
	}

	out, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core)}, Default(), results())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	refs := out.Refs()
	if len(refs) != 1 || refs[0] != "b" {
		t.Fatalf("expected only b to survive, got %v", refs)
	}

	steps := logs.FilterMessage("filter step").All()
	if len(steps) != 4 {
		t.Fatalf("expected 4 step logs, got %d", len(steps))
	}
	wantNames := []string{"exclude_file", "must_have_skills", "minimum_score", "top"}
	wantDropped := []int64{1, 1, 0, 1}
	for i, entry := range steps {
		fields := entry.ContextMap()
		if fields["name"] != wantNames[i] {
			t.Fatalf("step %d: expected %s, got %v", i, wantNames[i], fields["name"])
		}
		if fields["dropped"] != wantDropped[i] {
			t.Fatalf("step %s: expected %d dropped, got %v", wantNames[i], wantDropped[i], fields["dropped"])
		}
	}
}

func TestRunWithEmptyConfigKeepsEverything(t *testing.T) {
	out, err := Run(context.Background(), &Config{}, Deps{}, Default(), results())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("expected all results kept, got %d", out.Len())
	}
}

func TestRunValidatesBeforeApplying(t *testing.T) {
	tests := map[string]*Config{
		"minimum above one": {MinimumScore: 1.5},
		"negative minimum":  {MinimumScore: -0.1},
		"negative top":      {Top: -1},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			r := results()
			if _, err := Run(context.Background(), cfg, Deps{}, Default(), r); err == nil {
				t.Fatal("expected validation error")
			}
			if r.Len() != 4 {
				t.Fatalf("expected results untouched, got %d", r.Len())
			}
		})
	}
}

func TestRunSkipsDisabledFilters(t *testing.T) {
	steps := Default()
	DisableByName(steps, "minimum_score", "requested")

	core, logs := observer.New(zap.InfoLevel)
	out, err := Run(context.Background(), &Config{MinimumScore: 0.9}, Deps{Logger: zap.New(core)}, steps, results())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("expected disabled filter to keep results, got %d", out.Len())
	}
	if logs.FilterMessage("filter disabled").Len() != 1 {
		t.Fatal("expected disabled filter to be logged")
	}

	for _, status := range Describe(steps) {
		if status.Name == "minimum_score" && (status.Enabled || status.Reason != "requested") {
			t.Fatalf("unexpected status: %+v", status)
		}
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, &Config{}, Deps{}, Default(), results()); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestExcludeFileMissingIsEmpty(t *testing.T) {
	cfg := &Config{ExcludeFile: filepath.Join(t.TempDir(), "missing.json")}
	out, err := Run(context.Background(), cfg, Deps{}, []Filter{NewExcludeFile()}, results())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("expected all results kept, got %d", out.Len())
	}
}

func TestDescribe(t *testing.T) {
	steps := Default()
	for _, step := range steps {
		if err := step.Validate(&Config{Top: 3, MustHaveSkills: []string{"Go", "go"}}); err != nil {
			t.Fatalf("validate %s: %v", step.Name(), err)
		}
	}

	statuses := Describe(steps)
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	if statuses[1].Details["skills"] != "go" {
		t.Fatalf("expected deduplicated skills, got %v", statuses[1].Details)
	}
	if statuses[3].Details["top"] != "3" {
		t.Fatalf("unexpected top details: %v", statuses[3].Details)
	}
}
