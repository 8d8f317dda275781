package srs

import "time"

// MemoryState is the per-item spaced-repetition scheduling record. It is a
// plain value: the engine never mutates its input, and persisting an updated
// state is the caller's responsibility.
type MemoryState struct {
	Stage         Stage      `json:"stage"`
	Stability     float64    `json:"stability"`      // how slowly retrievability decays
	Difficulty    float64    `json:"difficulty"`     // bounded to [1, 10] once initialized
	ElapsedDays   int        `json:"elapsed_days"`   // whole days between the last two reviews
	ScheduledDays int        `json:"scheduled_days"` // whole days until due; 0 for sub-day steps
	LearningSteps int        `json:"learning_steps"` // position within the sub-day step ladder
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	Due           time.Time  `json:"due"`
	LastReview    *time.Time `json:"last_review"` // nil until the first rating
}

// NewMemoryState returns the state of a never-reviewed item. Due is set to now,
// so the item is immediately eligible for review.
func NewMemoryState(now time.Time) MemoryState {
	return MemoryState{
		Stage: StageNew,
		Due:   now,
	}
}

// LogEntry is the audit record produced by a single transition. The caller
// attaches item and owner identity before persisting it.
type LogEntry struct {
	Rating          Rating    `json:"rating"`
	Stage           Stage     `json:"stage"` // resulting stage
	Due             time.Time `json:"due"`
	Stability       float64   `json:"stability"`
	Difficulty      float64   `json:"difficulty"`
	ElapsedDays     int       `json:"elapsed_days"`
	LastElapsedDays int       `json:"last_elapsed_days"`
	ScheduledDays   int       `json:"scheduled_days"`
	ReviewedAt      time.Time `json:"reviewed_at"`
}
