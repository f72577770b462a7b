package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
)

const counterColumns = "key, count, id, mode, create_time, modify_time"

func (t *postgresTx) IncrementCounter(ctx context.Context, key string, delta int64) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE vfs_dir_counts SET count = count + $1, modify_time = $2
		WHERE key = $3`, delta, time.Now().Unix(), key)
	if err != nil {
		return false, fmt.Errorf("failed to increment counter: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// InsertCounter reports a uniqueness conflict as false. Under READ COMMITTED
// the insert waits for a concurrent uncommitted row with the same key and only
// then decides, so a false result always means the row is visible now.
func (t *postgresTx) InsertCounter(ctx context.Context, counter *data.Counter) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer sp.Rollback(ctx)

	_, err = sp.Exec(ctx, `
		INSERT INTO vfs_dir_counts (`+counterColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		counter.Key, counter.Count, counter.ID, int64(counter.Mode),
		counter.CreateTime.Unix(), counter.ModifyTime.Unix())
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert counter: %w", err)
	}

	return true, sp.Commit(ctx)
}

func (t *postgresTx) UpsertCounter(ctx context.Context, key string, delta int64) error {
	if err := t.check(true); err != nil {
		return err
	}

	counter := data.NewCounter(key, delta)
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vfs_dir_counts (`+counterColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			count = vfs_dir_counts.count + EXCLUDED.count,
			modify_time = EXCLUDED.modify_time`,
		counter.Key, counter.Count, counter.ID, int64(counter.Mode),
		counter.CreateTime.Unix(), counter.ModifyTime.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert counter: %w", err)
	}
	return nil
}

func (t *postgresTx) LockCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	return scanCounter(t.tx.QueryRow(ctx, `
		SELECT `+counterColumns+` FROM vfs_dir_counts WHERE key = $1 FOR UPDATE`, key))
}

func (t *postgresTx) DeleteCounter(ctx context.Context, key string) error {
	if err := t.check(true); err != nil {
		return err
	}

	tag, err := t.tx.Exec(ctx, "DELETE FROM vfs_dir_counts WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("failed to delete counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return data.ErrNotExist
	}
	return nil
}

func (t *postgresTx) ReadCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return scanCounter(t.tx.QueryRow(ctx, `
		SELECT `+counterColumns+` FROM vfs_dir_counts WHERE key = $1`, key))
}

func (t *postgresTx) ListCounters(ctx context.Context, prefix string) ([]*data.Counter, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT `+counterColumns+` FROM vfs_dir_counts
		WHERE key LIKE $1 ESCAPE '\' ORDER BY key`, backend.PrefixPattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to query counters: %w", err)
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

func scanCounter(row pgx.Row) (*data.Counter, error) {
	var counter data.Counter
	var mode, createTime, modifyTime int64

	err := row.Scan(&counter.Key, &counter.Count, &counter.ID, &mode, &createTime, &modifyTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan counter: %w", err)
	}

	counter.Mode = data.FileMode(mode)
	counter.CreateTime = time.Unix(createTime, 0)
	counter.ModifyTime = time.Unix(modifyTime, 0)
	return &counter, nil
}
