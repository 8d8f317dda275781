package srs

import "errors"

// Sentinel errors for the srs package.
// Use errors.Is to check: errors.Is(err, srs.ErrInvalidRating)
var (
	ErrInvalidRating     = errors.New("srs: invalid rating")
	ErrInvalidState      = errors.New("srs: invalid memory stage")
	ErrInvalidOutcome    = errors.New("srs: invalid outcome")
	ErrInvalidParameters = errors.New("srs: parameters out of bounds")
)
