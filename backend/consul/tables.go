package consul

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/mwantia/dircount/data"
)

func (t *consulTx) bindingPath(slot data.Slot) string {
	return t.cb.buildKey("bindings", slot.Table, slot.Hook)
}

func (t *consulTx) counterPath(key string) string {
	return t.cb.buildKey("counters", url.PathEscape(key))
}

func (t *consulTx) metadataPath(key string) string {
	return t.cb.buildKey("metadata", url.PathEscape(key))
}

func (t *consulTx) ReadBinding(ctx context.Context, slot data.Slot) (*data.Binding, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	binding, _, err := read[data.Binding](ctx, t, t.bindingPath(slot))
	return binding, err
}

func (t *consulTx) DeleteBinding(ctx context.Context, slot data.Slot, below int) (*data.Binding, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	binding, e, err := read[data.Binding](ctx, t, t.bindingPath(slot))
	if errors.Is(err, data.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if binding.Version >= below {
		return nil, nil
	}

	t.remove(e)
	return binding, nil
}

func (t *consulTx) InsertBinding(ctx context.Context, binding *data.Binding) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	e, err := t.load(ctx, t.bindingPath(binding.Slot))
	if err != nil {
		return false, err
	}
	if e.live {
		return false, nil
	}

	return true, t.store(e, binding)
}

func (t *consulTx) ListBindings(ctx context.Context) ([]*data.Binding, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return list[data.Binding](ctx, t, t.cb.buildKey("bindings")+"/")
}

func (t *consulTx) IncrementCounter(ctx context.Context, key string, delta int64) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	counter, e, err := read[data.Counter](ctx, t, t.counterPath(key))
	if errors.Is(err, data.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if counter.Count+delta < 1 {
		return false, fmt.Errorf("counter '%s' would drop to %d", key, counter.Count+delta)
	}

	counter.Count += delta
	counter.ModifyTime = time.Now()
	return true, t.store(e, counter)
}

func (t *consulTx) InsertCounter(ctx context.Context, counter *data.Counter) (bool, error) {
	if err := t.check(true); err != nil {
		return false, err
	}

	e, err := t.load(ctx, t.counterPath(counter.Key))
	if err != nil {
		return false, err
	}
	if e.live {
		return false, nil
	}

	return true, t.store(e, counter)
}

// LockCounter reads the counter. The index check at commit stands in for the
// row lock, a concurrent writer makes the commit fail with data.ErrConflict.
func (t *consulTx) LockCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	counter, _, err := read[data.Counter](ctx, t, t.counterPath(key))
	return counter, err
}

func (t *consulTx) DeleteCounter(ctx context.Context, key string) error {
	if err := t.check(true); err != nil {
		return err
	}

	e, err := t.load(ctx, t.counterPath(key))
	if err != nil {
		return err
	}
	if !e.live {
		return data.ErrNotExist
	}

	t.remove(e)
	return nil
}

func (t *consulTx) ReadCounter(ctx context.Context, key string) (*data.Counter, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	counter, _, err := read[data.Counter](ctx, t, t.counterPath(key))
	return counter, err
}

func (t *consulTx) ListCounters(ctx context.Context, prefix string) ([]*data.Counter, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	counters, err := list[data.Counter](ctx, t, t.counterPath(prefix))
	if err != nil {
		return nil, err
	}

	slices.SortFunc(counters, func(a, b *data.Counter) int {
		return strings.Compare(a.Key, b.Key)
	})
	return counters, nil
}

func (t *consulTx) InsertMeta(ctx context.Context, meta *data.Metadata) error {
	if err := t.check(true); err != nil {
		return err
	}

	e, err := t.load(ctx, t.metadataPath(meta.Key))
	if err != nil {
		return err
	}
	if e.live {
		return data.ErrExist
	}

	return t.store(e, meta)
}

func (t *consulTx) DeleteMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	meta, e, err := read[data.Metadata](ctx, t, t.metadataPath(key))
	if err != nil {
		return nil, err
	}

	t.remove(e)
	return meta, nil
}

func (t *consulTx) ReadMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	meta, _, err := read[data.Metadata](ctx, t, t.metadataPath(key))
	return meta, err
}

func (t *consulTx) ListMeta(ctx context.Context, prefix string) ([]*data.Metadata, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	metas, err := list[data.Metadata](ctx, t, t.metadataPath(prefix))
	if err != nil {
		return nil, err
	}

	slices.SortFunc(metas, func(a, b *data.Metadata) int {
		return strings.Compare(a.Key, b.Key)
	})
	return metas, nil
}
