package ranking

// Aggregate combines component scores into the overall score. The weights sum
// is not checked here; callers validate weights up front.
func Aggregate(s Scores, w Weights) float64 {
	overall := s.Skill*w.Skill +
		s.Experience*w.Experience +
		s.Education*w.Education +
		s.Text*w.Text +
		s.Location*w.Location

	return clamp01(overall)
}
