package srs

import "fmt"

// StudyMode selects how a raw review outcome maps onto a Rating.
type StudyMode string

const (
	ModeSelfRated      StudyMode = "self-rated"      // learner picks the rating directly
	ModeMultipleChoice StudyMode = "multiple-choice" // correctness + response time
	ModeTimed          StudyMode = "timed"           // correctness + response time
)

// DefaultGoodResponseMs is the response-time threshold separating Good from
// Hard for a correct answer. It is a product policy constant, overridable by
// configuration, not derived from the memory model.
const DefaultGoodResponseMs = 10_000

// IsValid reports whether m is a recognized study mode.
func (m StudyMode) IsValid() bool {
	switch m {
	case ModeSelfRated, ModeMultipleChoice, ModeTimed:
		return true
	}
	return false
}

// Outcome is the raw result of reviewing one item. In self-rated mode only
// Rating is set; in multiple-choice and timed modes Correct and ResponseTimeMs
// are set and Rating must be nil.
type Outcome struct {
	Rating         *Rating `json:"rating,omitempty"`
	Correct        *bool   `json:"correct,omitempty"`
	ResponseTimeMs int     `json:"response_time_ms,omitempty"`
}

// Normalize converts a raw outcome into the rating consumed by the engine.
// goodResponseMs ≤ 0 falls back to DefaultGoodResponseMs.
func Normalize(mode StudyMode, outcome Outcome, goodResponseMs int) (Rating, error) {
	if goodResponseMs <= 0 {
		goodResponseMs = DefaultGoodResponseMs
	}

	switch mode {
	case ModeSelfRated:
		if outcome.Rating == nil {
			return 0, fmt.Errorf("%w: self-rated outcome requires a rating", ErrInvalidOutcome)
		}
		if !outcome.Rating.IsValid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidRating, int(*outcome.Rating))
		}
		return *outcome.Rating, nil

	case ModeMultipleChoice, ModeTimed:
		if outcome.Correct == nil {
			return 0, fmt.Errorf("%w: %s outcome requires correct flag", ErrInvalidOutcome, mode)
		}
		if outcome.ResponseTimeMs < 0 {
			return 0, fmt.Errorf("%w: negative response time %d", ErrInvalidOutcome, outcome.ResponseTimeMs)
		}
		if !*outcome.Correct {
			return Again, nil
		}
		if outcome.ResponseTimeMs > goodResponseMs {
			return Hard, nil
		}
		return Good, nil

	default:
		return 0, fmt.Errorf("%w: unknown study mode %q", ErrInvalidOutcome, mode)
	}
}
