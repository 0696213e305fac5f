package ranking

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldText strips accents and lower-cases s.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(result)
}

// NormalizeSkill returns the comparison form of a skill name: accents folded,
// lower-cased, trimmed and with inner whitespace collapsed.
func NormalizeSkill(skill string) string {
	return strings.Join(strings.Fields(foldText(skill)), " ")
}

// normalizeSkills normalizes skills and drops empty and duplicate entries
// while keeping the first-seen order.
func normalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	result := make([]string, 0, len(skills))
	for _, skill := range skills {
		n := NormalizeSkill(skill)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
