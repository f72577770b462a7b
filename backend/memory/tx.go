package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/mwantia/dircount/data"
	"github.com/tidwall/btree"
)

// overlay holds the uncommitted writes of one unit of work on one table.
// A nil value marks a deleted row.
type overlay[V any] map[string]*V

const (
	tableBindings = "bindings"
	tableCounters = "counters"
	tableMetadata = "metadata"
)

type memoryTx struct {
	mb       *MemoryBackend
	id       uint64
	readOnly bool
	done     bool
	held     []string

	bindings overlay[data.Binding]
	counters overlay[data.Counter]
	metadata overlay[data.Metadata]
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return data.ErrClosed
	}
	defer tx.finish()

	mb := tx.mb
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return data.ErrClosed
	}

	apply(mb.bindings, tx.bindings)
	apply(mb.counters, tx.counters)
	apply(mb.metadata, tx.metadata)

	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}

	tx.finish()
	return nil
}

// finish releases all row locks. Overlays are dropped with the unit of work.
func (tx *memoryTx) finish() {
	tx.done = true
	for _, name := range tx.held {
		tx.mb.locks.release(name, tx.id)
	}
	tx.held = nil
}

func (tx *memoryTx) check(write bool) error {
	if tx.done {
		return data.ErrClosed
	}
	if write && tx.readOnly {
		return data.ErrReadOnly
	}
	return nil
}

// lock takes the exclusive row lock for key in table.
func (tx *memoryTx) lock(ctx context.Context, table, key string) error {
	name := table + "/" + key

	taken, err := tx.mb.locks.acquire(ctx, name, tx.id)
	if err != nil {
		return err
	}
	if taken {
		tx.held = append(tx.held, name)
	}
	return nil
}

// lookup resolves key against the overlay first, then against committed rows.
func lookup[V any](mb *MemoryBackend, rows *btree.Map[string, V], o overlay[V], key string) (V, bool) {
	if row, written := o[key]; written {
		if row == nil {
			var zero V
			return zero, false
		}
		return *row, true
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return rows.Get(key)
}

// scan returns all visible rows whose key starts with prefix, ordered by key.
func scan[V any](mb *MemoryBackend, rows *btree.Map[string, V], o overlay[V], prefix string) []V {
	visible := make(map[string]V)

	mb.mu.RLock()
	rows.Ascend(prefix, func(key string, row V) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		visible[key] = row
		return true
	})
	mb.mu.RUnlock()

	for key, row := range o {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if row == nil {
			delete(visible, key)
		} else {
			visible[key] = *row
		}
	}

	keys := make([]string, 0, len(visible))
	for key := range visible {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	result := make([]V, 0, len(keys))
	for _, key := range keys {
		result = append(result, visible[key])
	}
	return result
}

// apply writes an overlay into the committed rows. Caller holds mb.mu.
func apply[V any](rows *btree.Map[string, V], o overlay[V]) {
	for key, row := range o {
		if row == nil {
			rows.Delete(key)
		} else {
			rows.Set(key, *row)
		}
	}
}
