package srs

import (
	"fmt"
	"time"
)

// Config configures an Engine.
// Zero values produce sensible defaults; see field comments.
type Config struct {
	Parameters       [21]float64     `json:"parameters"`        // zero → DefaultParameters
	DesiredRetention float64         `json:"desired_retention"` // zero → 0.9
	LearningSteps    []time.Duration `json:"learning_steps"`    // nil → [1m, 10m]; empty → no steps
	RelearningSteps  []time.Duration `json:"relearning_steps"`  // nil → [10m]; empty → no steps
	MaximumInterval  int             `json:"maximum_interval"`  // zero → 36500
}

// Engine computes memory-state transitions using the FSRS v6 algorithm.
// Intervals are deterministic (no fuzzing) so that outputs are auditable
// against the published parameter set.
type Engine struct {
	algo             algo
	desiredRetention float64
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	maximumInterval  int
}

// NewEngine creates an Engine from the given config.
// Zero-value fields are filled with defaults; invalid values return an error.
func NewEngine(cfg Config) (*Engine, error) {
	params := cfg.Parameters
	if params == [21]float64{} {
		params = DefaultParameters
	}
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}

	dr := cfg.DesiredRetention
	if dr == 0 {
		dr = 0.9
	}
	if dr < 0 || dr > 1 {
		return nil, fmt.Errorf("srs: desired retention %f out of range (0, 1]", dr)
	}

	maxIvl := cfg.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 0 {
		return nil, fmt.Errorf("srs: maximum interval %d must be positive", maxIvl)
	}

	ls := cfg.LearningSteps
	if ls == nil {
		ls = []time.Duration{time.Minute, 10 * time.Minute}
	}

	rs := cfg.RelearningSteps
	if rs == nil {
		rs = []time.Duration{10 * time.Minute}
	}

	return &Engine{
		algo:             newAlgo(params),
		desiredRetention: dr,
		learningSteps:    ls,
		relearningSteps:  rs,
		maximumInterval:  maxIvl,
	}, nil
}

// ParameterSet returns the version name of the parameter set in use.
func (e *Engine) ParameterSet() string {
	return ParameterSetVersion
}

// Parameters returns a copy of the 21 weights the engine was built with.
func (e *Engine) Parameters() [21]float64 {
	return e.algo.w
}

// Transition applies a rating to a memory state at the given time. It returns
// the updated state and the audit log entry for the event. The input state is
// not mutated and no I/O is performed.
func (e *Engine) Transition(state MemoryState, rating Rating, now time.Time) (MemoryState, LogEntry, error) {
	if !rating.IsValid() {
		return MemoryState{}, LogEntry{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if !state.Stage.IsValid() {
		return MemoryState{}, LogEntry{}, fmt.Errorf("%w: %d", ErrInvalidState, int(state.Stage))
	}

	s := state

	// Elapsed days since the last review; zero for a first rating.
	var elapsed float64
	if s.Reps > 0 && s.LastReview != nil {
		elapsed = now.Sub(*s.LastReview).Hours() / 24.0
		if elapsed < 0 {
			elapsed = 0
		}
	}
	lastElapsed := s.ElapsedDays

	e.updateMemory(&s, rating, elapsed)
	interval := e.advance(&s, rating)

	s.Reps++
	s.ElapsedDays = int(elapsed)
	s.ScheduledDays = int(interval.Hours() / 24.0)
	s.Due = now.Add(interval)
	s.LastReview = &now

	entry := LogEntry{
		Rating:          rating,
		Stage:           s.Stage,
		Due:             s.Due,
		Stability:       s.Stability,
		Difficulty:      s.Difficulty,
		ElapsedDays:     s.ElapsedDays,
		LastElapsedDays: lastElapsed,
		ScheduledDays:   s.ScheduledDays,
		ReviewedAt:      now,
	}

	return s, entry, nil
}

// Retrievability returns the probability of recall for the state at the given
// time. Returns 0 for a never-reviewed item.
func (e *Engine) Retrievability(state MemoryState, now time.Time) float64 {
	if state.Reps == 0 || state.LastReview == nil {
		return 0
	}
	elapsed := now.Sub(*state.LastReview).Hours() / 24.0
	if elapsed < 0 {
		elapsed = 0
	}
	return e.algo.retrievability(elapsed, state.Stability)
}

// Preview returns the result of rating the state with each possible rating.
func (e *Engine) Preview(state MemoryState, now time.Time) (map[Rating]MemoryState, error) {
	result := make(map[Rating]MemoryState, 4)
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		s, _, err := e.Transition(state, r, now)
		if err != nil {
			return nil, err
		}
		result[r] = s
	}
	return result, nil
}

// updateMemory updates stability and difficulty for the rating.
func (e *Engine) updateMemory(s *MemoryState, rating Rating, elapsedDays float64) {
	if s.Reps == 0 {
		// First rating: seed S and D from the rating-indexed parameters.
		s.Stability = e.algo.initStability(rating)
		s.Difficulty = e.algo.initDifficulty(rating, true)
		return
	}

	if elapsedDays < 1 {
		// Same-day review.
		s.Stability = e.algo.shortTermStability(s.Stability, rating)
	} else {
		r := e.algo.retrievability(elapsedDays, s.Stability)
		s.Stability = e.algo.nextStability(s.Difficulty, s.Stability, r, rating)
	}
	s.Difficulty = e.algo.nextDifficulty(s.Difficulty, rating)
}

// advance applies the stage machine and returns the scheduling interval.
func (e *Engine) advance(s *MemoryState, rating Rating) time.Duration {
	switch s.Stage {
	case StageNew:
		s.Stage = StageLearning
		s.LearningSteps = 0
		return e.stepThrough(s, rating, e.learningSteps)
	case StageLearning:
		return e.stepThrough(s, rating, e.learningSteps)
	case StageRelearning:
		return e.stepThrough(s, rating, e.relearningSteps)
	default:
		return e.reviewNext(s, rating)
	}
}

// stepThrough walks the sub-day step ladder for Learning and Relearning.
func (e *Engine) stepThrough(s *MemoryState, rating Rating, steps []time.Duration) time.Duration {
	step := s.LearningSteps

	// Empty steps or step overflow → graduate to Review.
	if len(steps) == 0 || (step >= len(steps) && rating != Again) {
		return e.graduate(s)
	}

	switch rating {
	case Again:
		s.LearningSteps = 0
		return steps[0]

	case Hard:
		if step == 0 && len(steps) == 1 {
			return time.Duration(float64(steps[0]) * 1.5)
		}
		if step == 0 && len(steps) >= 2 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[step]

	case Good:
		next := step + 1
		if next >= len(steps) {
			// Last step → graduate.
			return e.graduate(s)
		}
		s.LearningSteps = next
		return steps[next]

	default: // Easy skips the remaining steps.
		return e.graduate(s)
	}
}

// reviewNext handles a rating applied in the Review stage.
func (e *Engine) reviewNext(s *MemoryState, rating Rating) time.Duration {
	if rating == Again {
		s.Lapses++
		if len(e.relearningSteps) > 0 {
			s.Stage = StageRelearning
			s.LearningSteps = 0
			return e.relearningSteps[0]
		}
		// Empty relearning steps → stay in Review with a full interval.
	}

	s.LearningSteps = 0
	days := e.algo.nextInterval(s.Stability, e.desiredRetention, e.maximumInterval)
	return time.Duration(days) * 24 * time.Hour
}

// graduate moves the state into Review and schedules a whole-day interval.
func (e *Engine) graduate(s *MemoryState) time.Duration {
	s.Stage = StageReview
	s.LearningSteps = 0
	days := e.algo.nextInterval(s.Stability, e.desiredRetention, e.maximumInterval)
	return time.Duration(days) * 24 * time.Hour
}
