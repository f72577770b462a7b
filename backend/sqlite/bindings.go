package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mwantia/dircount/data"
)

const bindingColumns = "table_name, hook_name, version, implementation, install_time"

func (t *sqliteTx) ReadBinding(ctx context.Context, slot data.Slot) (*data.Binding, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return scanBinding(t.tx.QueryRowContext(ctx, `
		SELECT `+bindingColumns+` FROM vfs_hook_bindings
		WHERE table_name = ? AND hook_name = ?`, slot.Table, slot.Hook))
}

func (t *sqliteTx) DeleteBinding(ctx context.Context, slot data.Slot, below int) (*data.Binding, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	binding, err := scanBinding(t.tx.QueryRowContext(ctx, `
		DELETE FROM vfs_hook_bindings
		WHERE table_name = ? AND hook_name = ? AND version < ?
		RETURNING `+bindingColumns, slot.Table, slot.Hook, below))
	if errors.Is(err, data.ErrNotExist) {
		return nil, nil
	}
	return binding, err
}

func (t *sqliteTx) InsertBinding(ctx context.Context, binding *data.Binding) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO vfs_hook_bindings (`+bindingColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(table_name, hook_name) DO NOTHING`,
		binding.Table, binding.Hook, binding.Version, binding.Implementation, binding.InstallTime.Unix())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (t *sqliteTx) ListBindings(ctx context.Context) ([]*data.Binding, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+bindingColumns+` FROM vfs_hook_bindings ORDER BY table_name, hook_name`)
	if err != nil {
		return nil, err
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

func scanBinding(row rowScanner) (*data.Binding, error) {
	var binding data.Binding
	var installTime int64

	err := row.Scan(&binding.Table, &binding.Hook, &binding.Version, &binding.Implementation, &installTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	binding.InstallTime = unixTime(installTime)
	return &binding, nil
}
