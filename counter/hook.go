package counter

import (
	"context"
	"fmt"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/hook"
	"github.com/mwantia/dircount/metrics"
)

// Implementation references of the directory counter hook.
const (
	RefV1 = "dir_count_v1"
	RefV2 = "dir_count_v2"
)

// DirectoryHook counts each metadata row towards its parent directory.
type DirectoryHook struct {
	engine *Engine
	upsert bool
}

// NewDirectoryHook creates the hook. With upsert set, inserts use the native
// upsert of the unit of work when it has one.
func NewDirectoryHook(engine *Engine, upsert bool) *DirectoryHook {
	return &DirectoryHook{
		engine: engine,
		upsert: upsert,
	}
}

func (h *DirectoryHook) OnInsert(ctx context.Context, tx backend.Tx, row *data.Metadata) error {
	key := data.ParentKey(row.Key)

	if h.upsert {
		if upserter, ok := tx.(backend.Upserter); ok {
			if err := upserter.UpsertCounter(ctx, key, 1); err != nil {
				return fmt.Errorf("failed to upsert counter '%s': %w", key, err)
			}

			h.engine.log.Debug("Upserted counter '%s'", key)
			h.engine.metrics.ObservePath(metrics.PathUpsert)
			return nil
		}
	}

	return h.engine.OnMemberCreated(ctx, tx, key)
}

func (h *DirectoryHook) OnDelete(ctx context.Context, tx backend.Tx, row *data.Metadata) error {
	return h.engine.OnMemberRemoved(ctx, tx, data.ParentKey(row.Key))
}

// Register adds both versions of the directory hook to reg.
func Register(reg *hook.Registry, engine *Engine) error {
	if err := reg.Register(RefV1, NewDirectoryHook(engine, false)); err != nil {
		return err
	}
	return reg.Register(RefV2, NewDirectoryHook(engine, true))
}
