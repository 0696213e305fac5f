package ranking

import (
	"strings"

	"golang.org/x/text/cases"
)

// MatchLocation returns 1 when both locations are known and equal ignoring
// case, 0 otherwise. There is no geographic fuzziness.
func MatchLocation(candidate, job string) float64 {
	candidate = strings.TrimSpace(candidate)
	job = strings.TrimSpace(job)
	if candidate == "" || job == "" {
		return 0
	}

	fold := cases.Fold()
	if fold.String(candidate) == fold.String(job) {
		return 1
	}

	return 0
}
