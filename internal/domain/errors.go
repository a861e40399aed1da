package domain

import "errors"

var (
	ErrNotFound               = errors.New("aggregate not found")
	ErrTerminalState          = errors.New("status is terminal")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrGuardRejected          = errors.New("transition guard rejected")
	ErrUnknownKind            = errors.New("unknown aggregate kind")
	ErrUnknownStatus          = errors.New("unknown status")
	ErrInvalidID              = errors.New("invalid id")
	ErrActorRequired          = errors.New("actor required")
	ErrEventNameRequired      = errors.New("event name required")
	ErrRegistrationClosed     = errors.New("event is not open for registration")
)

// GuardRejectedError carries the human-readable reason a guard refused a
// transition. It matches ErrGuardRejected under errors.Is.
type GuardRejectedError struct {
	Reason string
}

func (e *GuardRejectedError) Error() string {
	return "transition rejected: " + e.Reason
}

func (e *GuardRejectedError) Is(target error) bool {
	return target == ErrGuardRejected
}
