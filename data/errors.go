package data

import "errors"

// Standard errors that backends and callers should use.
var (
	// Row errors
	ErrNotExist = errors.New("dircount: row does not exist")
	ErrExist    = errors.New("dircount: row already exists")
	ErrReadOnly = errors.New("dircount: unit of work is read-only")
	ErrClosed   = errors.New("dircount: backend already closed")

	// Malformed input, surfaced before any mutation
	ErrInvalidKey            = errors.New("dircount: invalid key")
	ErrInvalidIdentifier     = errors.New("dircount: invalid identifier")
	ErrInvalidVersion        = errors.New("dircount: invalid version")
	ErrUnknownImplementation = errors.New("dircount: unknown implementation")
	ErrUnbound               = errors.New("dircount: no hook bound to slot")

	// Concurrency errors
	ErrConflict       = errors.New("dircount: concurrent unit of work conflict")
	ErrRetryExhausted = errors.New("dircount: bounded retry exhausted")

	// Invariant violations
	ErrCounterMissing = errors.New("dircount: counter missing for removed member")

	ErrUnsupported = errors.New("dircount: operation unsupported by backend")

	// Backend address errors
	ErrMalformedBackendAddress = errors.New("dircount: malformed backend address")
	ErrUnknownBackendProtocol  = errors.New("dircount: unknown backend protocol")
)
