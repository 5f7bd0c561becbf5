package stepflow

import "time"

// ToPtr returns a pointer to the given value. Handy for the many
// optional *string/*float64 fields in a state machine definition.
func ToPtr[T any](v T) *T {
	return &v
}

// CalculateBackoff computes the delay before a Retry attempt, applying
// the ASL BackoffRate multiplier and capping the result at maxDelay so
// a test suite with many retrying states still finishes quickly.
//
//   - attempt 0 (the original, non-retried call) always returns 0.
//   - EXPONENTIAL: baseDelay * backoffRate^(attempt-1), capped at maxDelay.
//   - LINEAR: baseDelay * attempt, capped at maxDelay.
func CalculateBackoff(baseDelay time.Duration, attempt int, backoffRate float64, strategy BackoffStrategy, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if backoffRate <= 0 {
		backoffRate = 2.0
	}

	var delay time.Duration
	switch strategy {
	case BackoffLinear:
		delay = baseDelay * time.Duration(attempt)
	default: // BackoffExponential
		multiplier := 1.0
		for i := 0; i < attempt-1; i++ {
			multiplier *= backoffRate
		}
		delay = time.Duration(float64(baseDelay) * multiplier)
	}

	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}
