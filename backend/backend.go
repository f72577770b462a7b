package backend

import "context"

// Backend is used as lifecycle entrypoint for storage implementations.
// All reads and writes against shared state happen inside a unit of work
// started with Begin.
type Backend interface {
	// Name returns the identifier name defined for this backend
	Name() string
	// Open is part of the lifecycle behaviour and gets called when opening this backend.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and gets called when closing this backend.
	Close(ctx context.Context) error

	// GetCapabilities returns a list of capabilities supported by this backend.
	GetCapabilities() *Capabilities

	// Begin starts a new unit of work.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)
}

type TxOptions struct {
	// ReadOnly units of work take no locks and reject writes.
	ReadOnly bool
}
