package counter

import (
	"fmt"
	"testing"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/backend/memory"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/hook"
	"github.com/mwantia/dircount/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainTx hides the native upsert of the wrapped unit of work.
type plainTx struct {
	backend.Tx
}

func TestRegister(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	reg := hook.NewRegistry()
	require.NoError(t, Register(reg, engine))
	assert.Equal(t, []string{RefV1, RefV2}, reg.Refs())

	assert.Error(t, Register(reg, engine))
}

func TestDirectoryHook_CountsParentDirectory(t *testing.T) {
	for _, upsert := range []bool{false, true} {
		ctx := t.Context()
		b := memory.NewMemoryBackend()
		m := metrics.New(prometheus.NewRegistry())
		engine, err := NewEngine(WithMetrics(m))
		require.NoError(t, err)

		h := NewDirectoryHook(engine, upsert)
		rows := []*data.Metadata{
			data.NewFileMetadata("/a/b/one.txt", 1),
			data.NewFileMetadata("/a/b/two.txt", 2),
			data.NewDirectoryMetadata("/a/b/c"),
			data.NewFileMetadata("/top.txt", 3),
		}

		for _, row := range rows {
			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				return h.OnInsert(ctx, tx, row)
			}))
		}

		count, _ := readCount(t, b, "/a/b")
		assert.Equal(t, int64(3), count)
		count, _ = readCount(t, b, "/")
		assert.Equal(t, int64(1), count)

		upserts := testutil.ToFloat64(m.CounterPaths.WithLabelValues(metrics.PathUpsert))
		if upsert {
			assert.Equal(t, 4.0, upserts)
		} else {
			assert.Zero(t, upserts)
		}

		require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
			return h.OnDelete(ctx, tx, rows[3])
		}))
		_, exists := readCount(t, b, "/")
		assert.False(t, exists)
	}
}

func TestDirectoryHook_FallsBackWithoutUpsert(t *testing.T) {
	ctx := t.Context()
	b := memory.NewMemoryBackend()
	m := metrics.New(prometheus.NewRegistry())
	engine, err := NewEngine(WithMetrics(m))
	require.NoError(t, err)

	h := NewDirectoryHook(engine, true)
	for range 2 {
		require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
			return h.OnInsert(ctx, plainTx{tx}, data.NewFileMetadata("/x/file", 0))
		}))
	}

	count, _ := readCount(t, b, "/x")
	assert.Equal(t, int64(2), count)
	assert.Zero(t, testutil.ToFloat64(m.CounterPaths.WithLabelValues(metrics.PathUpsert)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterPaths.WithLabelValues(metrics.PathInsert)))
}

func TestDirectoryHook_UpgradeKeepsCountsExact(t *testing.T) {
	ctx := t.Context()
	b := memory.NewMemoryBackend()
	engine, err := NewEngine()
	require.NoError(t, err)

	v1 := NewDirectoryHook(engine, false)
	v2 := NewDirectoryHook(engine, true)

	for i, h := range []*DirectoryHook{v1, v2, v1, v2} {
		row := data.NewFileMetadata(fmt.Sprintf("/mixed/%d", i), 0)
		require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
			return h.OnInsert(ctx, tx, row)
		}))
	}

	count, _ := readCount(t, b, "/mixed")
	assert.Equal(t, int64(4), count)
}
