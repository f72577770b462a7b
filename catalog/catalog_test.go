package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/backend/memory"
	"github.com/mwantia/dircount/backend/sqlite"
	"github.com/mwantia/dircount/blob"
	"github.com/mwantia/dircount/counter"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/hook"
	"github.com/mwantia/dircount/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testEnv struct {
	backend   backend.Backend
	catalog   *Catalog
	installer *hook.Installer
	blobs     *blob.MemoryStore
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T, b backend.Backend, opts ...CatalogOption) *testEnv {
	t.Helper()

	m := metrics.New(prometheus.NewRegistry())
	engine, err := counter.NewEngine(counter.WithMetrics(m))
	require.NoError(t, err)

	reg := hook.NewRegistry()
	require.NoError(t, counter.Register(reg, engine))

	installer, err := hook.NewInstaller(b, reg, hook.WithMetrics(m))
	require.NoError(t, err)

	blobs := blob.NewMemoryStore()
	opts = append([]CatalogOption{WithBlobStore(blobs), WithMetrics(m)}, opts...)

	cat, err := NewCatalog(b, reg, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		b.Close(context.Background())
	})

	return &testEnv{backend: b, catalog: cat, installer: installer, blobs: blobs, metrics: m}
}

func (env *testEnv) install(t *testing.T, version int, ref string) {
	t.Helper()

	outcome, err := env.installer.EnsureVersion(t.Context(), data.DefaultSlot, version, ref)
	require.NoError(t, err)
	require.Equal(t, hook.OutcomeInstalled, outcome)
}

func backends(t *testing.T) map[string]func() backend.Backend {
	return map[string]func() backend.Backend{
		"memory": func() backend.Backend {
			return memory.NewMemoryBackend()
		},
		"sqlite": func() backend.Backend {
			sb, err := sqlite.NewSQLiteBackend(":memory:")
			require.NoError(t, err)
			return sb
		},
	}
}

func TestCatalog_CountsMembers(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			env := newTestEnv(t, factory())
			env.install(t, 1, counter.RefV1)

			_, err := env.catalog.Mkdir(ctx, "/docs")
			require.NoError(t, err)

			meta, err := env.catalog.Put(ctx, "docs/a.txt", strings.NewReader("hello"), "text/plain")
			require.NoError(t, err)
			assert.Equal(t, "/docs/a.txt", meta.Key)
			assert.Equal(t, int64(5), meta.Size)
			assert.Len(t, meta.ETag, 64)

			_, err = env.catalog.Put(ctx, "/docs/b.txt", strings.NewReader("world"), "text/plain")
			require.NoError(t, err)

			count, err := env.catalog.Count(ctx, "/docs")
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			count, err = env.catalog.Count(ctx, "/")
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			r, err := env.catalog.Open(ctx, "/docs/a.txt")
			require.NoError(t, err)
			content, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(content))

			removed, err := env.catalog.Remove(ctx, "/docs/a.txt")
			require.NoError(t, err)
			assert.Equal(t, meta.ID, removed.ID)
			assert.Len(t, env.blobs.Keys(""), 1)

			_, err = env.catalog.Remove(ctx, "/docs/b.txt")
			require.NoError(t, err)

			count, err = env.catalog.Count(ctx, "/docs")
			require.NoError(t, err)
			assert.Zero(t, count)

			counters, err := env.catalog.Counts(ctx, "")
			require.NoError(t, err)
			require.Len(t, counters, 1)
			assert.Equal(t, "/", counters[0].Key)

			mismatches, err := env.catalog.Verify(ctx)
			require.NoError(t, err)
			assert.Empty(t, mismatches)
		})
	}
}

func TestCatalog_RejectsInvalidKeys(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, memory.NewMemoryBackend())

	_, err := env.catalog.Mkdir(ctx, "/")
	assert.ErrorIs(t, err, data.ErrInvalidKey)

	_, err = env.catalog.Put(ctx, "", strings.NewReader(""), "")
	assert.ErrorIs(t, err, data.ErrInvalidKey)

	_, err = env.catalog.Remove(ctx, "/missing")
	assert.ErrorIs(t, err, data.ErrNotExist)
}

func TestCatalog_DuplicatePutKeepsContent(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, memory.NewMemoryBackend())
	env.install(t, 1, counter.RefV1)

	meta, err := env.catalog.Put(ctx, "/a", strings.NewReader("first"), "")
	require.NoError(t, err)
	assert.Equal(t, data.ContentTypeStream, meta.ContentType)
	assert.Equal(t, "blake3", meta.GetAttribute(data.AttributeChecksum, ""))
	assert.Equal(t, meta.ID, meta.GetAttribute(data.AttributeBlob, ""))

	_, err = env.catalog.Put(ctx, "/a", strings.NewReader("second"), "")
	require.ErrorIs(t, err, data.ErrExist)
	assert.Len(t, env.blobs.Keys(""), 1)

	r, err := env.catalog.Open(ctx, "/a")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	count, err := env.catalog.Count(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCatalog_UnboundSlotRefusesWrites(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			env := newTestEnv(t, factory())

			_, err := env.catalog.Put(ctx, "/a/x", strings.NewReader("content"), "")
			require.ErrorIs(t, err, data.ErrUnbound)
			assert.Empty(t, env.blobs.Keys(""))

			_, err = env.catalog.Mkdir(ctx, "/a")
			require.ErrorIs(t, err, data.ErrUnbound)

			_, err = env.catalog.Stat(ctx, "/a/x")
			assert.ErrorIs(t, err, data.ErrNotExist)

			env.install(t, 1, counter.RefV1)

			_, err = env.catalog.Put(ctx, "/a/x", strings.NewReader("content"), "")
			require.NoError(t, err)

			count, err := env.catalog.Count(ctx, "/a")
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			_, err = env.catalog.Remove(ctx, "/a/x")
			require.NoError(t, err)

			count, err = env.catalog.Count(ctx, "/a")
			require.NoError(t, err)
			assert.Zero(t, count)

			mismatches, err := env.catalog.Verify(ctx)
			require.NoError(t, err)
			assert.Empty(t, mismatches)
		})
	}
}

func TestCatalog_UnboundSlotRefusesRemove(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, memory.NewMemoryBackend())

	require.NoError(t, backend.Update(ctx, env.backend, func(tx backend.Tx) error {
		return tx.InsertMeta(ctx, data.NewFileMetadata("/a/x", 0))
	}))

	_, err := env.catalog.Remove(ctx, "/a/x")
	require.ErrorIs(t, err, data.ErrUnbound)

	// The unit of work rolled back
	meta, err := env.catalog.Stat(ctx, "/a/x")
	require.NoError(t, err)
	assert.Equal(t, "/a/x", meta.Key)
}

func TestCatalog_ConcurrentTrafficStaysExact(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			env := newTestEnv(t, factory())
			env.install(t, 1, counter.RefV1)

			const writers = 16

			g, gctx := errgroup.WithContext(ctx)
			for w := range writers {
				g.Go(func() error {
					for i := range 6 {
						key := fmt.Sprintf("/shared/%d-%d", w, i)
						if _, err := env.catalog.Put(gctx, key, strings.NewReader(key), ""); err != nil {
							return err
						}
						// Remove every other entry again
						if i%2 == 1 {
							if _, err := env.catalog.Remove(gctx, key); err != nil {
								return err
							}
						}
					}
					return nil
				})
			}

			// Upgrade to the upsert implementation under traffic
			g.Go(func() error {
				for {
					outcome, err := env.installer.EnsureVersion(gctx, data.DefaultSlot, 2, counter.RefV2)
					if err != nil || outcome != hook.OutcomeConflict {
						return err
					}
				}
			})
			require.NoError(t, g.Wait())

			count, err := env.catalog.Count(ctx, "/shared")
			require.NoError(t, err)
			assert.Equal(t, int64(writers*3), count)

			mismatches, err := env.catalog.Verify(ctx)
			require.NoError(t, err)
			assert.Empty(t, mismatches)

			bindings, err := env.catalog.Bindings(ctx)
			require.NoError(t, err)
			require.Len(t, bindings, 1)
			assert.Equal(t, 2, bindings[0].Version)
		})
	}
}

// conflictBackend fails the next commits with data.ErrConflict.
type conflictBackend struct {
	backend.Backend
	failures atomic.Int32
}

type conflictTx struct {
	backend.Tx
	b *conflictBackend
}

func (cb *conflictBackend) Begin(ctx context.Context, opts backend.TxOptions) (backend.Tx, error) {
	tx, err := cb.Backend.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &conflictTx{Tx: tx, b: cb}, nil
}

func (tx *conflictTx) Commit(ctx context.Context) error {
	if tx.b.failures.Add(-1) >= 0 {
		tx.Tx.Rollback(ctx)
		return data.ErrConflict
	}
	return tx.Tx.Commit(ctx)
}

func TestCatalog_RetriesCommitConflicts(t *testing.T) {
	ctx := t.Context()
	cb := &conflictBackend{Backend: memory.NewMemoryBackend()}
	env := newTestEnv(t, cb)
	env.install(t, 1, counter.RefV1)

	cb.failures.Store(3)
	_, err := env.catalog.Mkdir(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.UnitRetries))

	count, err := env.catalog.Count(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCatalog_CommitConflictsExhaustBound(t *testing.T) {
	ctx := t.Context()
	cb := &conflictBackend{Backend: memory.NewMemoryBackend()}
	env := newTestEnv(t, cb, WithMaxAttempts(2))
	env.install(t, 1, counter.RefV1)

	cb.failures.Store(5)
	_, err := env.catalog.Mkdir(ctx, "/a")
	assert.ErrorIs(t, err, data.ErrRetryExhausted)
	assert.ErrorIs(t, err, data.ErrConflict)

	cb.failures.Store(0)
	_, err = env.catalog.Stat(ctx, "/a")
	assert.ErrorIs(t, err, data.ErrNotExist)
}
