package memory

import (
	"context"

	"github.com/mwantia/dircount/data"
)

func (tx *memoryTx) ReadBinding(ctx context.Context, slot data.Slot) (*data.Binding, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}

	binding, exists := lookup(tx.mb, tx.mb.bindings, tx.bindings, slot.String())
	if !exists {
		return nil, data.ErrNotExist
	}
	return &binding, nil
}

func (tx *memoryTx) DeleteBinding(ctx context.Context, slot data.Slot, below int) (*data.Binding, error) {
	if err := tx.check(true); err != nil {
		return nil, err
	}

	key := slot.String()
	if err := tx.lock(ctx, tableBindings, key); err != nil {
		return nil, err
	}

	binding, exists := lookup(tx.mb, tx.mb.bindings, tx.bindings, key)
	if !exists || binding.Version >= below {
		return nil, nil
	}

	tx.bindings[key] = nil
	return &binding, nil
}

func (tx *memoryTx) InsertBinding(ctx context.Context, binding *data.Binding) (bool, error) {
	if err := tx.check(true); err != nil {
		return false, err
	}

	key := binding.Slot.String()
	if err := tx.lock(ctx, tableBindings, key); err != nil {
		return false, err
	}

	if _, exists := lookup(tx.mb, tx.mb.bindings, tx.bindings, key); exists {
		return false, nil
	}

	row := *binding
	tx.bindings[key] = &row
	return true, nil
}

func (tx *memoryTx) ListBindings(ctx context.Context) ([]*data.Binding, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}

	rows := scan(tx.mb, tx.mb.bindings, tx.bindings, "")
	bindings := make([]*data.Binding, len(rows))
	for i := range rows {
		bindings[i] = &rows[i]
	}
	return bindings, nil
}
