package ranking

import "strings"

// Education levels, lowest to highest.
const (
	LevelUnknown = iota
	LevelHighSchool
	LevelAssociate
	LevelBachelor
	LevelMaster
	LevelDoctorate
)

type educationKeyword struct {
	keyword string
	level   int
}

// educationKeywords is checked in order and the first substring hit wins, so
// higher degrees come first: "master's after a bachelor's" is a master. School
// keywords precede "diploma" so a high school diploma stays at school level.
var educationKeywords = []educationKeyword{
	{"phd", LevelDoctorate},
	{"ph.d", LevelDoctorate},
	{"doctorate", LevelDoctorate},
	{"doctor", LevelDoctorate},
	{"master", LevelMaster},
	{"m.tech", LevelMaster},
	{"m.sc", LevelMaster},
	{"m.com", LevelMaster},
	{"m.e.", LevelMaster},
	{"mca", LevelMaster},
	{"mba", LevelMaster},
	{"bachelor", LevelBachelor},
	{"b.tech", LevelBachelor},
	{"b.sc", LevelBachelor},
	{"b.com", LevelBachelor},
	{"b.e.", LevelBachelor},
	{"bca", LevelBachelor},
	{"associate", LevelAssociate},
	{"high school", LevelHighSchool},
	{"high-school", LevelHighSchool},
	{"highschool", LevelHighSchool},
	{"secondary", LevelHighSchool},
	{"diploma", LevelAssociate},
}

// EducationLevel resolves a free-form qualification to its ordinal level, or
// LevelUnknown when no keyword is found.
func EducationLevel(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelUnknown
	}

	for _, kw := range educationKeywords {
		if strings.Contains(s, kw.keyword) {
			return kw.level
		}
	}

	return LevelUnknown
}

// MatchEducation scores the candidate's qualification against the required one.
// Falling short earns at most half credit.
func MatchEducation(candidate, required string) float64 {
	req := EducationLevel(required)
	if req == LevelUnknown {
		return 0
	}

	cand := EducationLevel(candidate)
	if cand >= req {
		return 1
	}

	return clamp01(0.5 * float64(cand) / float64(req))
}
