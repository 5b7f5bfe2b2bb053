package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidPrompt   = errors.New("invalid prompt")
	ErrInvalidPlatform = errors.New("invalid platform")
	ErrStaleTransition = errors.New("job is not in the expected status")

	// ErrProfanityDetected rejects prompts that fail the appropriateness check.
	ErrProfanityDetected = &JobError{Kind: ErrorKindProfanity, Message: "prompt contains inappropriate language"}
)

// JobError carries a discrete failure kind decoupled from its message. Err
// keeps the underlying cause for logging and is never shown to users.
type JobError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JobError) Unwrap() error { return e.Err }

// Is matches any JobError of the same kind.
func (e *JobError) Is(target error) bool {
	t, ok := target.(*JobError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the ErrorKind from err, defaulting to UNKNOWN_ERROR.
func KindOf(err error) ErrorKind {
	var jobErr *JobError
	if errors.As(err, &jobErr) && jobErr.Kind != "" {
		return jobErr.Kind
	}
	return ErrorKindUnknown
}

// CancelRejectedError is returned when cancelling a job that is no longer pending.
type CancelRejectedError struct {
	JobID  string
	Status JobStatus
}

func (e *CancelRejectedError) Error() string {
	return fmt.Sprintf("job %s cannot be cancelled: status is %s", e.JobID, e.Status)
}
