package intake

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/talent-ranker/internal/ranking"
)

func sampleResults() *Results {
	job := &ranking.Job{Title: "Data Engineer"}
	candidates := []*ranking.Candidate{
		{ID: "a", Name: "Ann", Location: "Austin"},
		{Name: "Unnamed"},
		{ID: "c", Name: "Cid", Location: "Seattle"},
	}
	matches := []ranking.MatchResult{
		{CandidateRef: "c", OverallScore: 0.9, MatchedSkills: []string{"python", "sql"}},
		{CandidateRef: "a", OverallScore: 0.7, MissingSkills: []string{"airflow"}},
		{CandidateRef: "candidate-1", OverallScore: 0.2, Degraded: []string{"text: no terms"}},
	}
	return NewResults(job, candidates, matches)
}

func TestNewResultsJoinsCandidates(t *testing.T) {
	results := sampleResults()

	if results.Job != "Data Engineer" || results.Len() != 3 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if got := results.Items[0]; got.Rank != 1 || got.Name != "Cid" || got.Location != "Seattle" {
		t.Fatalf("unexpected first result: %+v", got)
	}
	if got := results.Items[2]; got.Name != "Unnamed" || got.Rank != 3 {
		t.Fatalf("expected positional ref to resolve: %+v", got)
	}
}

func TestResultsExcludeAndTruncate(t *testing.T) {
	results := sampleResults()

	removed := results.Exclude([]string{"a", "missing"})
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("unexpected removed: %v", removed)
	}
	if refs := results.Refs(); len(refs) != 2 || refs[0] != "c" || refs[1] != "candidate-1" {
		t.Fatalf("expected order to be preserved, got %v", refs)
	}
	if results.Items[1].Rank != 3 {
		t.Fatalf("expected original rank to be kept, got %d", results.Items[1].Rank)
	}

	if removed := results.Truncate(5); removed != nil {
		t.Fatalf("expected nothing truncated, got %v", removed)
	}
	if removed := results.Truncate(1); len(removed) != 1 || results.Len() != 1 {
		t.Fatalf("unexpected truncate result: %v, len %d", removed, results.Len())
	}
	if results.FindByRef("c") == nil || results.FindByRef("a") != nil {
		t.Fatal("unexpected FindByRef result")
	}
}

func TestReportByLocation(t *testing.T) {
	report := sampleResults().ReportByLocation()

	entries, ok := report["Seattle"]
	if !ok || len(entries) != 1 {
		t.Fatalf("expected Seattle entry, got %v", report)
	}
	if entries[0]["overall score"] != "0.900" || entries[0]["matched skills"] != "python, sql" {
		t.Fatalf("unexpected entry: %v", entries[0])
	}

	unknown := report[unknownLocation]
	if len(unknown) != 1 || unknown[0]["degraded"] != "text: no terms" {
		t.Fatalf("expected candidate without location under %q, got %v", unknownLocation, unknown)
	}
}

func TestDumpToTmpFile(t *testing.T) {
	path, err := sampleResults().DumpToTmpFile()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}

	var decoded struct {
		Job   string `json:"job"`
		Items []struct {
			Rank         int     `json:"rank"`
			CandidateRef string  `json:"candidate_ref"`
			OverallScore float64 `json:"overall_score"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if decoded.Job != "Data Engineer" || len(decoded.Items) != 3 || decoded.Items[0].CandidateRef != "c" {
		t.Fatalf("unexpected dump: %s", data)
	}
}

func TestExcludedRoundTrip(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	originalNow := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = originalNow })

	path := filepath.Join(t.TempDir(), "excluded.json")

	excluded, err := ExcludedFromFile(path)
	if err != nil {
		t.Fatalf("expected missing file to be empty, got %v", err)
	}
	if len(excluded.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(excluded.Items))
	}

	results := sampleResults()
	results.Truncate(2)
	excluded.Append(results.ToExcluded())
	excluded.Append(results.ToExcluded())
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	loaded, err := ExcludedFromFile(path)
	if err != nil {
		t.Fatalf("read exclude file: %v", err)
	}
	ids := loaded.IDs()
	if len(ids) != 2 || ids[0] != "c" || ids[1] != "a" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if !loaded.Items[0].ExcludedAt.Equal(fixed) || loaded.Items[0].Job != "Data Engineer" {
		t.Fatalf("unexpected entry: %+v", loaded.Items[0])
	}

	// A shorter list must not leave trailing bytes from the previous write.
	loaded.Items = loaded.Items[:1]
	if err := loaded.ToFile(path); err != nil {
		t.Fatalf("rewrite exclude file: %v", err)
	}
	if again, err := ExcludedFromFile(path); err != nil || len(again.Items) != 1 {
		t.Fatalf("expected 1 item after rewrite, got %v (%v)", again, err)
	}
}

func TestExcludedFromEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	excluded, err := ExcludedFromFile(path)
	if err != nil || len(excluded.Items) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", excluded, err)
	}
}
