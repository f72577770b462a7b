package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/mwantia/dircount/data"
)

func (tx *memoryTx) IncrementCounter(ctx context.Context, key string, delta int64) (bool, error) {
	if err := tx.check(true); err != nil {
		return false, err
	}

	// Only rows visible to this unit of work can match, so an uncommitted
	// insert of another unit of work is a miss just like in SQL.
	if _, exists := lookup(tx.mb, tx.mb.counters, tx.counters, key); !exists {
		return false, nil
	}

	if err := tx.lock(ctx, tableCounters, key); err != nil {
		return false, err
	}

	// Re-read under the lock, the row may have been deleted meanwhile.
	counter, exists := lookup(tx.mb, tx.mb.counters, tx.counters, key)
	if !exists {
		return false, nil
	}

	if counter.Count+delta < 1 {
		return false, fmt.Errorf("counter '%s' would drop to %d", key, counter.Count+delta)
	}

	counter.Count += delta
	counter.ModifyTime = time.Now()
	tx.counters[key] = &counter
	return true, nil
}

func (tx *memoryTx) InsertCounter(ctx context.Context, counter *data.Counter) (bool, error) {
	if err := tx.check(true); err != nil {
		return false, err
	}

	if err := tx.lock(ctx, tableCounters, counter.Key); err != nil {
		return false, err
	}

	if _, exists := lookup(tx.mb, tx.mb.counters, tx.counters, counter.Key); exists {
		return false, nil
	}

	row := *counter
	tx.counters[counter.Key] = &row
	return true, nil
}

func (tx *memoryTx) UpsertCounter(ctx context.Context, key string, delta int64) error {
	if err := tx.check(true); err != nil {
		return err
	}

	if err := tx.lock(ctx, tableCounters, key); err != nil {
		return err
	}

	counter, exists := lookup(tx.mb, tx.mb.counters, tx.counters, key)
	if !exists {
		tx.counters[key] = data.NewCounter(key, delta)
		return nil
	}

	counter.Count += delta
	counter.ModifyTime = time.Now()
	tx.counters[key] = &counter
	return nil
}

func (tx *memoryTx) LockCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := tx.check(true); err != nil {
		return nil, err
	}

	if err := tx.lock(ctx, tableCounters, key); err != nil {
		return nil, err
	}

	counter, exists := lookup(tx.mb, tx.mb.counters, tx.counters, key)
	if !exists {
		return nil, data.ErrNotExist
	}
	return &counter, nil
}

func (tx *memoryTx) DeleteCounter(ctx context.Context, key string) error {
	if err := tx.check(true); err != nil {
		return err
	}

	if err := tx.lock(ctx, tableCounters, key); err != nil {
		return err
	}

	if _, exists := lookup(tx.mb, tx.mb.counters, tx.counters, key); !exists {
		return data.ErrNotExist
	}

	tx.counters[key] = nil
	return nil
}

func (tx *memoryTx) ReadCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}

	counter, exists := lookup(tx.mb, tx.mb.counters, tx.counters, key)
	if !exists {
		return nil, data.ErrNotExist
	}
	return &counter, nil
}

func (tx *memoryTx) ListCounters(ctx context.Context, prefix string) ([]*data.Counter, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}

	rows := scan(tx.mb, tx.mb.counters, tx.counters, prefix)
	counters := make([]*data.Counter, len(rows))
	for i := range rows {
		counters[i] = &rows[i]
	}
	return counters, nil
}
