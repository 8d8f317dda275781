package apperr

import "fmt"

// Code identifies a category of application error.
type Code string

const (
	CodeInvalidRequest   Code = "INVALID_REQUEST"   // 400
	CodeInvalidRating    Code = "INVALID_RATING"    // 400
	CodeInvalidOutcome   Code = "INVALID_OUTCOME"   // 400
	CodeInvalidState     Code = "INVALID_STATE"     // 400
	CodeForbidden        Code = "FORBIDDEN"         // 403
	CodeNotFound         Code = "NOT_FOUND"         // 404
	CodeConflict         Code = "CONFLICT"          // 409
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED" // 409
	CodeUnavailable      Code = "UNAVAILABLE"       // 409 (claim lost a race; not user-facing)
	CodeNoHandler        Code = "NO_HANDLER"        // 422
	CodeInternal         Code = "INTERNAL"          // 500
)

// Error is a structured application error with a code, an HTTP status,
// and optional details for the response body.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for malformed request input.
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Status: 400, Message: msg}
}

// NewInvalidRating creates a 400 error for a rating outside Again..Easy.
func NewInvalidRating(rating int) *Error {
	return &Error{
		Code:    CodeInvalidRating,
		Status:  400,
		Message: fmt.Sprintf("invalid rating: %d", rating),
		Details: map[string]any{"rating": rating},
	}
}

// NewInvalidOutcome creates a 400 error for a malformed review outcome.
func NewInvalidOutcome(msg string) *Error {
	return &Error{Code: CodeInvalidOutcome, Status: 400, Message: msg}
}

// NewInvalidState creates a 400 error for a memory state outside the four stages.
func NewInvalidState(stage int) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Status:  400,
		Message: fmt.Sprintf("invalid memory stage: %d", stage),
		Details: map[string]any{"stage": stage},
	}
}

// NewForbidden creates a 403 error for an ownership mismatch. The message is
// deliberately uniform so it does not leak whether the resource exists.
func NewForbidden() *Error {
	return &Error{Code: CodeForbidden, Status: 403, Message: "forbidden"}
}

// NewNotFound creates a 404 error for an unknown item, deck, or job.
func NewNotFound(kind, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for a lost optimistic-concurrency race.
func NewConflict(msg string) *Error {
	return &Error{Code: CodeConflict, Status: 409, Message: msg}
}

// NewCapacityExceeded creates a 409 error when a deck is at its membership bound.
func NewCapacityExceeded(capacity, current int) *Error {
	return &Error{
		Code:    CodeCapacityExceeded,
		Status:  409,
		Message: fmt.Sprintf("deck at capacity: %d of %d slots used", current, capacity),
		Details: map[string]any{"capacity": capacity, "current": current, "available": capacity - current},
	}
}

// NewUnavailable creates the error returned when a job claim loses a race.
// Callers should treat it as "try another job", not a user-facing failure.
func NewUnavailable(jobID string) *Error {
	return &Error{
		Code:    CodeUnavailable,
		Status:  409,
		Message: fmt.Sprintf("job not claimable: %s", jobID),
		Details: map[string]any{"job_id": jobID},
	}
}

// NewNoHandler creates the error recorded when a job type has no registered handler.
func NewNoHandler(jobType string) *Error {
	return &Error{
		Code:    CodeNoHandler,
		Status:  422,
		Message: fmt.Sprintf("no handler registered for job type %q", jobType),
		Details: map[string]any{"type": jobType},
	}
}

// NewInternal creates a 500 error wrapping an unexpected failure.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: CodeInternal, Status: 500, Message: msg}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	if aErr, ok := err.(*Error); ok {
		return aErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP status for err, or 500 for non-application errors.
func StatusOf(err error) int {
	if aErr, ok := err.(*Error); ok {
		return aErr.Status
	}
	return 500
}
