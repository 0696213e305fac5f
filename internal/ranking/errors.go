package ranking

import "errors"

var (
	// ErrInvalidInput marks a malformed job or candidate field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorizationFailure marks text that produced no usable term vector.
	ErrVectorizationFailure = errors.New("vectorization failure")
	// ErrProviderUnavailable marks a similarity provider that failed or timed out.
	ErrProviderUnavailable = errors.New("similarity provider unavailable")
	// ErrInvalidWeights is returned by Weights.Validate.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrJobRequired is returned by Rank when no job is given.
	ErrJobRequired = errors.New("job is required")
)
