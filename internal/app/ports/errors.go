package ports

import "errors"

// Store-level sentinels returned by repository implementations.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Caller-facing error kinds. Use cases wrap these so transports can map
// them with errors.Is without knowing the concrete error type.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyExists      = errors.New("already exists")
	ErrFailedPrecondition = errors.New("failed precondition")
)
