// Package hook binds numbered implementations of a row-level maintenance
// routine to a table and upgrades those bindings forward only.
package hook

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
)

// Hook runs inside the unit of work of every row insert and delete on the
// table it is bound to.
type Hook interface {
	OnInsert(ctx context.Context, tx backend.Tx, row *data.Metadata) error
	OnDelete(ctx context.Context, tx backend.Tx, row *data.Metadata) error
}

// Registry holds every implementation a binding may reference.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[string]Hook),
	}
}

// Register adds an implementation under ref. A ref can only be registered once.
func (r *Registry) Register(ref string, h Hook) error {
	if err := data.ValidateIdentifier(ref); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("failed to register '%s': hook is nil", ref)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hooks[ref]; exists {
		return fmt.Errorf("failed to register '%s': %w", ref, data.ErrExist)
	}

	r.hooks[ref] = h
	return nil
}

// Lookup returns the implementation registered under ref.
func (r *Registry) Lookup(ref string) (Hook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.hooks[ref]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrUnknownImplementation, ref)
	}
	return h, nil
}

// Refs returns all registered references in sorted order.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.hooks))
	for ref := range r.hooks {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

// Resolve reads the binding for slot within tx and returns its implementation.
// It returns data.ErrNotExist if nothing is bound.
func (r *Registry) Resolve(ctx context.Context, tx backend.BindingTx, slot data.Slot) (Hook, *data.Binding, error) {
	binding, err := tx.ReadBinding(ctx, slot)
	if err != nil {
		if errors.Is(err, data.ErrNotExist) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to read binding %s: %w", slot, err)
	}

	h, err := r.Lookup(binding.Implementation)
	if err != nil {
		return nil, binding, fmt.Errorf("binding %s: %w", binding, err)
	}

	return h, binding, nil
}
