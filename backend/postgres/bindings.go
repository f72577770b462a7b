package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/dircount/data"
)

const bindingColumns = "table_name, hook_name, version, implementation, install_time"

func (t *postgresTx) ReadBinding(ctx context.Context, slot data.Slot) (*data.Binding, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return scanBinding(t.tx.QueryRow(ctx, `
		SELECT `+bindingColumns+` FROM vfs_hook_bindings
		WHERE table_name = $1 AND hook_name = $2`, slot.Table, slot.Hook))
}

func (t *postgresTx) DeleteBinding(ctx context.Context, slot data.Slot, below int) (*data.Binding, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	binding, err := scanBinding(t.tx.QueryRow(ctx, `
		DELETE FROM vfs_hook_bindings
		WHERE table_name = $1 AND hook_name = $2 AND version < $3
		RETURNING `+bindingColumns, slot.Table, slot.Hook, below))
	if errors.Is(err, data.ErrNotExist) {
		return nil, nil
	}
	return binding, err
}

func (t *postgresTx) InsertBinding(ctx context.Context, binding *data.Binding) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	tag, err := t.tx.Exec(ctx, `
		INSERT INTO vfs_hook_bindings (`+bindingColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (table_name, hook_name) DO NOTHING`,
		binding.Table, binding.Hook, binding.Version, binding.Implementation, binding.InstallTime.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert binding: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (t *postgresTx) ListBindings(ctx context.Context) ([]*data.Binding, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT `+bindingColumns+` FROM vfs_hook_bindings ORDER BY table_name, hook_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*data.Binding
	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, binding)
	}

	return bindings, rows.Err()
}

func scanBinding(row pgx.Row) (*data.Binding, error) {
	var binding data.Binding
	var installTime int64

	err := row.Scan(&binding.Table, &binding.Hook, &binding.Version, &binding.Implementation, &installTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan binding: %w", err)
	}

	binding.InstallTime = time.Unix(installTime, 0)
	return &binding, nil
}
