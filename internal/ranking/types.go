package ranking

import (
	"fmt"
	"math"
)

// weightsTolerance is the slack allowed when checking that weights sum to one.
const weightsTolerance = 1e-6

// Job is a requisition candidates are ranked against.
type Job struct {
	Title              string   `json:"title,omitempty" mapstructure:"title"`
	RequiredSkills     []string `json:"required_skills,omitempty" mapstructure:"required_skills"`
	RequiredExperience float64  `json:"required_experience,omitempty" mapstructure:"required_experience"`
	RequiredEducation  string   `json:"required_education,omitempty" mapstructure:"required_education"`
	Location           string   `json:"location,omitempty" mapstructure:"location"`
	Description        string   `json:"description,omitempty" mapstructure:"description"`
}

// Candidate is an already extracted profile. The ranker never modifies it.
type Candidate struct {
	ID                   string   `json:"id,omitempty" mapstructure:"id"`
	Name                 string   `json:"name,omitempty" mapstructure:"name"`
	Skills               []string `json:"skills,omitempty" mapstructure:"skills"`
	TotalExperience      float64  `json:"total_experience,omitempty" mapstructure:"total_experience"`
	HighestQualification string   `json:"highest_qualification,omitempty" mapstructure:"highest_qualification"`
	Location             string   `json:"location,omitempty" mapstructure:"location"`
	ResumeText           string   `json:"resume_text,omitempty" mapstructure:"resume_text"`
}

// MatchResult is the score breakdown of one candidate for one job.
type MatchResult struct {
	CandidateRef        string   `json:"candidate_ref"`
	SkillScore          float64  `json:"skill_score"`
	ExperienceScore     float64  `json:"experience_score"`
	EducationScore      float64  `json:"education_score"`
	TextSimilarityScore float64  `json:"text_similarity_score"`
	LocationScore       float64  `json:"location_score"`
	OverallScore        float64  `json:"overall_score"`
	MatchedSkills       []string `json:"matched_skills"`
	MissingSkills       []string `json:"missing_skills"`
	// Degraded lists the dimensions that fell back to a zero score and why.
	Degraded []string `json:"degraded,omitempty"`
}

// Weights are the per-dimension multipliers of the overall score.
type Weights struct {
	Skill      float64 `json:"skill" mapstructure:"skill"`
	Experience float64 `json:"experience" mapstructure:"experience"`
	Education  float64 `json:"education" mapstructure:"education"`
	Text       float64 `json:"text" mapstructure:"text"`
	Location   float64 `json:"location" mapstructure:"location"`
}

// DefaultWeights returns the stock weighting of the five dimensions.
func DefaultWeights() Weights {
	return Weights{
		Skill:      0.35,
		Experience: 0.25,
		Education:  0.15,
		Text:       0.15,
		Location:   0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Skill + w.Experience + w.Education + w.Text + w.Location
}

// Validate checks that every weight is a non-negative finite number and that
// together they sum to one.
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"skill", w.Skill},
		{"experience", w.Experience},
		{"education", w.Education},
		{"text", w.Text},
		{"location", w.Location},
	}

	for _, n := range named {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) || n.value < 0 {
			return fmt.Errorf("%w: %s weight must be a non-negative number, got %v", ErrInvalidWeights, n.name, n.value)
		}
	}

	if sum := w.Sum(); math.Abs(sum-1) > weightsTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.6f", ErrInvalidWeights, sum)
	}

	return nil
}

// Scores holds the five component scores of a candidate.
type Scores struct {
	Skill      float64
	Experience float64
	Education  float64
	Text       float64
	Location   float64
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
