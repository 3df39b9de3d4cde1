package redeem

import (
	"errors"
	"strings"
)

// Failures a submission or decision can return. All of them are expected
// conditions: callers map them to user-facing responses and never treat them
// as process faults.
var (
	// ErrDuplicateKey means the redeem key has already been consumed.
	// Permanent for that key.
	ErrDuplicateKey = errors.New("redeem key already used")
	// ErrRateLimited means the submitter or origin is throttled. Transient;
	// the caller may retry after the window.
	ErrRateLimited = errors.New("too many requests, try again later")
	// ErrNotFound means no request exists with the given id.
	ErrNotFound = errors.New("request not found")
	// ErrAlreadyDecided means the request is terminal and cannot be
	// re-decided. Informational, not worth alarming on.
	ErrAlreadyDecided = errors.New("request already decided")
)

// ValidationError reports every rule a draft violated, so the submitter can
// fix the whole form in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Violations, "; ")
}
