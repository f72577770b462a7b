package hook

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
)

// Installer moves the binding of a slot to newer versions.
type Installer struct {
	backend  backend.Backend
	registry *Registry

	log     *log.Logger
	metrics *metrics.Metrics
}

func NewInstaller(b backend.Backend, registry *Registry, opts ...InstallerOption) (*Installer, error) {
	options := newDefaultInstallerOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return &Installer{
		backend:  b,
		registry: registry,
		log:      options.Logger,
		metrics:  options.Metrics,
	}, nil
}

// EnsureVersion binds version of ref to slot unless an equal or newer version
// is already bound. A lost race against a concurrent installer is reported as
// OutcomeConflict and left to the caller to retry; the installed version
// never decreases. On error the outcome is OutcomeUnknown.
func (i *Installer) EnsureVersion(ctx context.Context, slot data.Slot, version int, ref string) (Outcome, error) {
	if err := slot.Validate(); err != nil {
		return OutcomeUnknown, err
	}
	if version < 0 {
		return OutcomeUnknown, fmt.Errorf("%w: %d", data.ErrInvalidVersion, version)
	}
	if _, err := i.registry.Lookup(ref); err != nil {
		return OutcomeUnknown, err
	}

	// Lock-free read, the steady state of repeated calls ends here
	current, err := i.current(ctx, slot)
	if err != nil {
		return OutcomeUnknown, err
	}
	if current != nil && current.Version >= version {
		i.log.Debug("No change needed for %s: v%d is bound, v%d requested", slot, current.Version, version)
		return i.observe(slot, OutcomeNoChange), nil
	}

	outcome, err := i.install(ctx, data.NewBinding(slot, version, ref))
	if err != nil {
		return OutcomeUnknown, err
	}
	return i.observe(slot, outcome), nil
}

func (i *Installer) current(ctx context.Context, slot data.Slot) (*data.Binding, error) {
	var current *data.Binding
	err := backend.View(ctx, i.backend, func(tx backend.Tx) error {
		binding, err := tx.ReadBinding(ctx, slot)
		if err != nil {
			return err
		}
		current = binding
		return nil
	})
	if err != nil && !errors.Is(err, data.ErrNotExist) {
		return nil, fmt.Errorf("failed to read binding %s: %w", slot, err)
	}

	return current, nil
}

// install replaces any older binding with binding in one unit of work.
func (i *Installer) install(ctx context.Context, binding *data.Binding) (Outcome, error) {
	tx, err := i.backend.Begin(ctx, backend.TxOptions{})
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer tx.Rollback(ctx)

	removed, err := tx.DeleteBinding(ctx, binding.Slot, binding.Version)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("failed to remove binding %s: %w", binding.Slot, err)
	}

	inserted, err := tx.InsertBinding(ctx, binding)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("failed to insert binding %s: %w", binding, err)
	}
	if !inserted {
		i.log.Info("Conflict installing %s: an equal or newer version was bound concurrently", binding)
		return OutcomeConflict, nil
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, data.ErrConflict) {
			i.log.Info("Conflict installing %s: %v", binding, err)
			return OutcomeConflict, nil
		}
		return OutcomeUnknown, fmt.Errorf("failed to commit binding %s: %w", binding, err)
	}

	if removed != nil {
		i.log.Info("Removed binding %s", removed)
	}
	i.log.Info("Installed binding %s", binding)
	return OutcomeInstalled, nil
}

func (i *Installer) observe(slot data.Slot, outcome Outcome) Outcome {
	i.metrics.ObserveInstall(slot.Table, slot.Hook, outcome.String())
	return outcome
}
