package intake

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spigell/talent-ranker/internal/ranking"
)

const unknownLocation = "unknown"

var now = time.Now

// Results is a ranked list joined back to the candidate profiles.
type Results struct {
	Job   string    `json:"job"`
	Items []*Result `json:"items"`
}

// Result is one ranked candidate. Rank is the 1-based position in the
// original ranking and survives filtering.
type Result struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
	ranking.MatchResult
}

// NewResults joins matches with the candidates they were computed from.
func NewResults(job *ranking.Job, candidates []*ranking.Candidate, matches []ranking.MatchResult) *Results {
	byRef := make(map[string]*ranking.Candidate, len(candidates))
	for idx, c := range candidates {
		byRef[ranking.CandidateRef(idx, c)] = c
	}

	results := &Results{Items: make([]*Result, 0, len(matches))}
	if job != nil {
		results.Job = job.Title
	}

	for idx, match := range matches {
		result := &Result{Rank: idx + 1, MatchResult: match}
		if c := byRef[match.CandidateRef]; c != nil {
			result.Name = c.Name
			result.Location = c.Location
		}
		results.Items = append(results.Items, result)
	}

	return results
}

func (r *Results) Len() int {
	return len(r.Items)
}

// Refs returns candidate refs in ranking order.
func (r *Results) Refs() []string {
	refs := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		refs = append(refs, item.CandidateRef)
	}
	return refs
}

// Keep retains the results for which keep returns true, preserving order,
// and returns the refs of the removed ones.
func (r *Results) Keep(keep func(*Result) bool) []string {
	var removed []string
	kept := r.Items[:0]
	for _, item := range r.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		removed = append(removed, item.CandidateRef)
	}
	clear(r.Items[len(kept):])
	r.Items = kept
	return removed
}

// Exclude removes the results whose candidate ref is in refs.
func (r *Results) Exclude(refs []string) []string {
	targets := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		targets[ref] = struct{}{}
	}
	return r.Keep(func(item *Result) bool {
		_, found := targets[item.CandidateRef]
		return !found
	})
}

// Truncate keeps the first n results.
func (r *Results) Truncate(n int) []string {
	if n < 0 || n >= len(r.Items) {
		return nil
	}
	removed := make([]string, 0, len(r.Items)-n)
	for _, item := range r.Items[n:] {
		removed = append(removed, item.CandidateRef)
	}
	clear(r.Items[n:])
	r.Items = r.Items[:n]
	return removed
}

// FindByRef returns the result for ref, or nil.
func (r *Results) FindByRef(ref string) *Result {
	for _, item := range r.Items {
		if item.CandidateRef == ref {
			return item
		}
	}
	return nil
}

// ReportByLocation groups the results by candidate location.
func (r *Results) ReportByLocation() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range r.Items {
		key := strings.TrimSpace(item.Location)
		if key == "" {
			key = unknownLocation
		}

		entry := map[string]string{
			"rank":           fmt.Sprintf("%d", item.Rank),
			"candidate":      item.CandidateRef,
			"name":           item.Name,
			"overall score":  fmt.Sprintf("%.3f", item.OverallScore),
			"matched skills": strings.Join(item.MatchedSkills, ", "),
			"missing skills": strings.Join(item.MissingSkills, ", "),
		}
		if len(item.Degraded) > 0 {
			entry["degraded"] = strings.Join(item.Degraded, "; ")
		}
		report[key] = append(report[key], entry)
	}
	return report
}

// DumpToTmpFile writes the results as indented JSON to a new temp file and
// returns its path.
func (r *Results) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "results_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ToExcluded converts the results into exclude file entries.
func (r *Results) ToExcluded() *ExcludedCandidates {
	excluded := &ExcludedCandidates{}
	at := now().UTC()
	for _, item := range r.Items {
		excluded.Items = append(excluded.Items, &ExcludedCandidate{
			ID:         item.CandidateRef,
			Name:       item.Name,
			Job:        r.Job,
			Score:      item.OverallScore,
			ExcludedAt: at,
		})
	}
	return excluded
}
