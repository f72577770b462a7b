package consul

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/dircount/data"
)

// maxTxnOps is the operation limit of a single Consul KV transaction.
const maxTxnOps = 64

var errTxDone = errors.New("consul: unit of work already finished")

// entry is the local view of one KV key within a unit of work.
type entry struct {
	// State observed when the key was first read
	index  uint64
	exists bool

	value []byte
	live  bool
	dirty bool
}

type consulTx struct {
	cb       *ConsulBackend
	readOnly bool
	done     bool

	entries map[string]*entry
}

func (t *consulTx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true

	if t.readOnly {
		return nil
	}

	ops := t.ops()
	if !slices.ContainsFunc(ops, func(op *api.TxnOp) bool {
		return op.KV.Verb == api.KVCAS || op.KV.Verb == api.KVDeleteCAS
	}) {
		// Nothing written
		return nil
	}
	if len(ops) > maxTxnOps {
		return fmt.Errorf("consul: unit of work touches %d keys, limit is %d", len(ops), maxTxnOps)
	}

	ok, resp, _, err := t.cb.client.Txn().Txn(ops, t.cb.queryOptions(ctx))
	if err != nil {
		return err
	}
	if !ok {
		var reasons []string
		if resp != nil {
			for _, txnErr := range resp.Errors {
				reasons = append(reasons, txnErr.What)
			}
		}
		return fmt.Errorf("%w: %s", data.ErrConflict, strings.Join(reasons, "; "))
	}

	return nil
}

func (t *consulTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

// ops translates the local state into transaction operations, sorted by key.
func (t *consulTx) ops() api.TxnOps {
	var ops api.TxnOps
	for _, path := range slices.Sorted(maps.Keys(t.entries)) {
		e := t.entries[path]

		op := &api.KVTxnOp{Key: path}
		switch {
		case e.dirty && e.live:
			// Index 0 only succeeds if the key still does not exist
			op.Verb = api.KVCAS
			op.Value = e.value
			op.Index = e.index
		case e.dirty && e.exists:
			op.Verb = api.KVDeleteCAS
			op.Index = e.index
		case e.exists:
			op.Verb = api.KVCheckIndex
			op.Index = e.index
		default:
			op.Verb = api.KVCheckNotExists
		}

		ops = append(ops, &api.TxnOp{KV: op})
	}
	return ops
}

func (t *consulTx) check(write bool) error {
	if t.done {
		return errTxDone
	}
	if write && t.readOnly {
		return data.ErrReadOnly
	}
	return nil
}

// load returns the local entry for path, reading it from Consul once.
func (t *consulTx) load(ctx context.Context, path string) (*entry, error) {
	if e, ok := t.entries[path]; ok {
		return e, nil
	}

	pair, _, err := t.cb.kv.Get(path, t.cb.queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	e := &entry{}
	if pair != nil {
		e.index = pair.ModifyIndex
		e.exists = true
		e.live = true
		e.value = pair.Value
	}

	// Read-only units of work never commit, so there is nothing to track
	if !t.readOnly {
		t.entries[path] = e
	}
	return e, nil
}

func (t *consulTx) store(e *entry, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	e.value = value
	e.live = true
	e.dirty = true
	return nil
}

func (t *consulTx) remove(e *entry) {
	e.value = nil
	e.live = false
	e.dirty = true
}

func decode[V any](e *entry) (*V, error) {
	var v V
	if err := json.Unmarshal(e.value, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// read returns the decoded value at path or data.ErrNotExist.
func read[V any](ctx context.Context, t *consulTx, path string) (*V, *entry, error) {
	e, err := t.load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if !e.live {
		return nil, e, data.ErrNotExist
	}

	v, err := decode[V](e)
	return v, e, err
}

// list returns all values below prefix merged with the local state.
func list[V any](ctx context.Context, t *consulTx, prefix string) ([]*V, error) {
	pairs, _, err := t.cb.kv.List(prefix, t.cb.queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	values := make(map[string][]byte, len(pairs))
	for _, pair := range pairs {
		values[pair.Key] = pair.Value
	}
	for path, e := range t.entries {
		if !e.dirty || !strings.HasPrefix(path, prefix) {
			continue
		}
		if e.live {
			values[path] = e.value
		} else {
			delete(values, path)
		}
	}

	result := make([]*V, 0, len(values))
	for _, path := range slices.Sorted(maps.Keys(values)) {
		var v V
		if err := json.Unmarshal(values[path], &v); err != nil {
			return nil, fmt.Errorf("consul: failed to decode '%s': %w", path, err)
		}
		result = append(result, &v)
	}
	return result, nil
}
