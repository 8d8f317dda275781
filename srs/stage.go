package srs

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Stage represents the learning stage of an item.
type Stage int

const (
	StageNew        Stage = iota + 1 // Never reviewed.
	StageLearning                    // In initial sub-day learning steps.
	StageReview                      // Entered the long-term review cycle.
	StageRelearning                  // Lapsed from Review, relearning.
)

var (
	stageNames  = [...]string{StageNew: "New", StageLearning: "Learning", StageReview: "Review", StageRelearning: "Relearning"}
	stageByName = map[string]Stage{
		"New":        StageNew,
		"Learning":   StageLearning,
		"Review":     StageReview,
		"Relearning": StageRelearning,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Stage(0)
	_ json.Marshaler           = Stage(0)
	_ json.Unmarshaler         = (*Stage)(nil)
	_ encoding.TextMarshaler   = Stage(0)
	_ encoding.TextUnmarshaler = (*Stage)(nil)
)

// IsValid reports whether s is one of the four defined stages.
func (s Stage) IsValid() bool {
	return s >= StageNew && s <= StageRelearning
}

// String returns the name of the stage ("New", "Learning", "Review", "Relearning").
// For invalid values it returns "Stage(n)".
func (s Stage) String() string {
	if s.IsValid() {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	v, ok := stageByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. Stage serializes as a JSON string.
func (s Stage) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidState, data)
	}
	return s.UnmarshalText([]byte(str))
}
