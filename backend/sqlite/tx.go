package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mwantia/dircount/data"
)

type sqliteTx struct {
	tx       *sql.Tx
	readOnly bool
	done     bool
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	if t.readOnly {
		return t.tx.Rollback()
	}
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	return t.tx.Rollback()
}

func (t *sqliteTx) check(write bool) error {
	if t.done {
		return sql.ErrTxDone
	}
	if write && t.readOnly {
		return data.ErrReadOnly
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullInt64(val int64) sql.NullInt64 {
	if val == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: val, Valid: true}
}

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
