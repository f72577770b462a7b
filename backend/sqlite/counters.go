package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
)

const counterColumns = "key, count, id, mode, create_time, modify_time"

func (t *sqliteTx) IncrementCounter(ctx context.Context, key string, delta int64) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE vfs_dir_counts SET count = count + ?, modify_time = ?
		WHERE key = ?`, delta, time.Now().Unix(), key)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (t *sqliteTx) InsertCounter(ctx context.Context, counter *data.Counter) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO vfs_dir_counts (`+counterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		counter.Key, counter.Count, counter.ID, int64(counter.Mode),
		counter.CreateTime.Unix(), counter.ModifyTime.Unix())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (t *sqliteTx) UpsertCounter(ctx context.Context, key string, delta int64) error {
	if err := t.check(true); err != nil {
		return err
	}

	counter := data.NewCounter(key, delta)
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO vfs_dir_counts (`+counterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = count + excluded.count,
			modify_time = excluded.modify_time`,
		counter.Key, counter.Count, counter.ID, int64(counter.Mode),
		counter.CreateTime.Unix(), counter.ModifyTime.Unix())
	return err
}

// LockCounter is a plain read, the single connection already serializes writers.
func (t *sqliteTx) LockCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	return scanCounter(t.tx.QueryRowContext(ctx, `
		SELECT `+counterColumns+` FROM vfs_dir_counts WHERE key = ?`, key))
}

func (t *sqliteTx) DeleteCounter(ctx context.Context, key string) error {
	if err := t.check(true); err != nil {
		return err
	}

	result, err := t.tx.ExecContext(ctx, "DELETE FROM vfs_dir_counts WHERE key = ?", key)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return data.ErrNotExist
	}
	return nil
}

func (t *sqliteTx) ReadCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return scanCounter(t.tx.QueryRowContext(ctx, `
		SELECT `+counterColumns+` FROM vfs_dir_counts WHERE key = ?`, key))
}

func (t *sqliteTx) ListCounters(ctx context.Context, prefix string) ([]*data.Counter, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+counterColumns+` FROM vfs_dir_counts
		WHERE key LIKE ? ESCAPE '\' ORDER BY key`, backend.PrefixPattern(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []*data.Counter
	for rows.Next() {
		counter, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		counters = append(counters, counter)
	}

	return counters, rows.Err()
}

func scanCounter(row rowScanner) (*data.Counter, error) {
	var counter data.Counter
	var mode, createTime, modifyTime int64

	err := row.Scan(&counter.Key, &counter.Count, &counter.ID, &mode, &createTime, &modifyTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	counter.Mode = data.FileMode(mode)
	counter.CreateTime = unixTime(createTime)
	counter.ModifyTime = unixTime(modifyTime)
	return &counter, nil
}
