package backend

import (
	"context"
	"fmt"

	"github.com/mwantia/dircount/data"
)

// Tx is one atomic unit of work. Rollback after Commit is a no-op, so
// callers can always defer it.
type Tx interface {
	BindingTx
	CounterTx
	MetadataTx

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BindingTx manages the hook binding table.
type BindingTx interface {
	// ReadBinding returns the binding for slot or data.ErrNotExist.
	ReadBinding(ctx context.Context, slot data.Slot) (*data.Binding, error)

	// DeleteBinding removes the binding for slot if its version is lower than
	// below and returns the removed row, or nil if nothing was removed.
	DeleteBinding(ctx context.Context, slot data.Slot, below int) (*data.Binding, error)

	// InsertBinding creates a binding. It reports false when a binding for the
	// same slot already exists.
	InsertBinding(ctx context.Context, binding *data.Binding) (bool, error)

	ListBindings(ctx context.Context) ([]*data.Binding, error)
}

// CounterTx manages the directory counter table.
type CounterTx interface {
	// IncrementCounter adds delta to an existing counter and reports whether
	// a row matched.
	IncrementCounter(ctx context.Context, key string, delta int64) (bool, error)

	// InsertCounter creates a counter. It reports false on a uniqueness
	// conflict with a concurrently created row.
	InsertCounter(ctx context.Context, counter *data.Counter) (bool, error)

	// LockCounter reads a counter and holds an exclusive lock on its row until
	// the unit of work ends. Returns data.ErrNotExist if there is no row.
	LockCounter(ctx context.Context, key string) (*data.Counter, error)

	DeleteCounter(ctx context.Context, key string) error

	// ReadCounter reads a counter without locking it.
	ReadCounter(ctx context.Context, key string) (*data.Counter, error)

	// ListCounters returns all counters whose key starts with prefix, ordered by key.
	ListCounters(ctx context.Context, prefix string) ([]*data.Counter, error)
}

// MetadataTx manages the metadata table whose row events drive the hook.
type MetadataTx interface {
	// InsertMeta returns data.ErrExist if the key is taken.
	InsertMeta(ctx context.Context, meta *data.Metadata) error

	// DeleteMeta removes and returns the row, or data.ErrNotExist.
	DeleteMeta(ctx context.Context, key string) (*data.Metadata, error)

	ReadMeta(ctx context.Context, key string) (*data.Metadata, error)

	// ListMeta returns all rows whose key starts with prefix, ordered by key.
	ListMeta(ctx context.Context, prefix string) ([]*data.Metadata, error)
}

// Upserter is implemented by units of work with a native atomic upsert.
type Upserter interface {
	// UpsertCounter adds delta to the counter for key, creating it with
	// count delta if absent.
	UpsertCounter(ctx context.Context, key string, delta int64) error
}

// Update runs fn in a read-write unit of work and commits it if fn succeeds.
func Update(ctx context.Context, b Backend, fn func(tx Tx) error) error {
	return run(ctx, b, TxOptions{}, fn)
}

// View runs fn in a read-only unit of work.
func View(ctx context.Context, b Backend, fn func(tx Tx) error) error {
	return run(ctx, b, TxOptions{ReadOnly: true}, fn)
}

func run(ctx context.Context, b Backend, opts TxOptions, fn func(tx Tx) error) error {
	tx, err := b.Begin(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
