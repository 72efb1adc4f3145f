package capture

import (
	"fmt"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
)

const (
	ReasonAlreadyOwned = "already-owned-by-requester"
	ReasonContended    = "retry-budget-exhausted"
	ReasonNotAdjacent  = "not-adjacent"
)

var (
	ErrMissingRequester  = fmt.Errorf("%w: requester uid is required", ports.ErrUnauthenticated)
	ErrInvalidTarget     = fmt.Errorf("%w: target must satisfy q+r+s=0", ports.ErrInvalidArgument)
	ErrTargetOutOfBounds = fmt.Errorf("%w: target coordinates must be within ±%d", ports.ErrInvalidArgument, hex.MaxComponent)
	ErrColonyNotFound    = fmt.Errorf("%w: requester has no colony", ports.ErrNotFound)
)

// ConflictError is returned when the requester already owns the target or
// when every attempt lost an optimistic-concurrency race.
type ConflictError struct {
	Reason   string
	Attempts int
}

func (e *ConflictError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("capture conflict: %s after %d attempts", e.Reason, e.Attempts)
	}
	return "capture conflict: " + e.Reason
}

func (e *ConflictError) Unwrap() error {
	return ports.ErrAlreadyExists
}

type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "capture precondition failed: " + e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return ports.ErrFailedPrecondition
}
