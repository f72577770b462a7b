package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mwantia/dircount/data"
)

// uniqueViolation is the SQLSTATE raised for duplicate keys.
const uniqueViolation = "23505"

type postgresTx struct {
	tx       pgx.Tx
	readOnly bool
	done     bool
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	return t.tx.Rollback(ctx)
}

func (t *postgresTx) check(write bool) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if write && t.readOnly {
		return data.ErrReadOnly
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullInt64(val int64) *int64 {
	if val == 0 {
		return nil
	}
	return &val
}

func nullString(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}
