package ranking

import (
	"fmt"
	"math"
)

// MatchExperience converts years of experience into a score in [0,1].
//
// An unset requirement scores 0. Meeting or exceeding the requirement scores 1.
// A shortfall earns ln(1+ratio)/ln(2), which rises faster than the plain ratio
// near the requirement.
func MatchExperience(candidateYears, requiredYears float64) (float64, error) {
	if math.IsNaN(candidateYears) || math.IsInf(candidateYears, 0) || candidateYears < 0 {
		return 0, fmt.Errorf("%w: candidate experience %v", ErrInvalidInput, candidateYears)
	}
	if math.IsNaN(requiredYears) || requiredYears <= 0 {
		return 0, nil
	}
	if candidateYears >= requiredYears {
		return 1, nil
	}

	ratio := candidateYears / requiredYears
	return clamp01(math.Log1p(ratio) / math.Ln2), nil
}
