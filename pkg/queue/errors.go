package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrEmpty is returned by Claim when no job is runnable.
	ErrEmpty = errors.New("queue empty")
	// ErrNotFound indicates the job does not exist or is not in the expected state.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidMessage indicates an enqueue request is malformed.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownKind indicates no handler is registered for a job kind.
	ErrUnknownKind = errors.New("no handler registered for job kind")
	// ErrTimeout indicates a job exceeded its pool's wall-clock limit.
	ErrTimeout = errors.New("job timed out")
	// ErrPanic indicates a handler panicked.
	ErrPanic = errors.New("job handler panicked")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. The fabric dead-letters a job whose
// handler returns a permanent error regardless of remaining attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func panicError(v any) error {
	return fmt.Errorf("%w: %v", ErrPanic, v)
}
