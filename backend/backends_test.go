package backend_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/backend/consul"
	"github.com/mwantia/dircount/backend/memory"
	"github.com/mwantia/dircount/backend/postgres"
	"github.com/mwantia/dircount/backend/sqlite"
	"github.com/mwantia/dircount/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackendFactory creates a new backend instance for testing.
type TestBackendFactory func(t *testing.T) (backend.Backend, error)

// GetTestBackendFactories returns all backend implementations to test.
// Postgres and Consul only run when their address is set in the environment.
func GetTestBackendFactories() map[string]TestBackendFactory {
	factories := map[string]TestBackendFactory{
		"memory": func(t *testing.T) (backend.Backend, error) {
			return memory.NewMemoryBackend(), nil
		},
		"sqlite": func(t *testing.T) (backend.Backend, error) {
			return sqlite.NewSQLiteBackend(":memory:")
		},
	}

	if url := os.Getenv("DIRCOUNT_POSTGRES_URL"); url != "" {
		factories["postgres"] = func(t *testing.T) (backend.Backend, error) {
			return postgres.NewPostgresBackend(t.Context(), url)
		}
	}

	if addr := os.Getenv("DIRCOUNT_CONSUL_ADDR"); addr != "" {
		factories["consul"] = func(t *testing.T) (backend.Backend, error) {
			return consul.NewConsulBackend(&consul.ConsulBackendConfig{
				Address: addr,
				Prefix:  "dircount-test/" + uuid.NewString(),
			})
		}
	}

	return factories
}

// uniqueNames keeps test runs apart on shared databases.
func uniqueNames(t *testing.T) (string, data.Slot) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "/" + id, data.Slot{Table: "t_" + id, Hook: "dir_count"}
}

func openBackend(t *testing.T, factory TestBackendFactory) backend.Backend {
	t.Helper()

	b, err := factory(t)
	require.NoError(t, err)
	require.NoError(t, b.Open(t.Context()))
	t.Cleanup(func() {
		b.Close(context.Background())
	})

	return b
}

func TestAllBackends_Capabilities(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			caps := b.GetCapabilities()

			assert.Equal(t, name, b.Name())
			assert.True(t, caps.Contains(backend.CapabilityMetadata))
			assert.True(t, caps.Contains(backend.CapabilityCounters))
			assert.True(t, caps.Contains(backend.CapabilityBindings))
			assert.NotEqual(t, caps.Contains(backend.CapabilityRowLock), caps.Contains(backend.CapabilityOptimistic))
		})
	}
}

func TestAllBackends_BindingReplace(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			b := openBackend(t, factory)
			_, slot := uniqueNames(t)

			err := backend.View(ctx, b, func(tx backend.Tx) error {
				_, err := tx.ReadBinding(ctx, slot)
				return err
			})
			require.ErrorIs(t, err, data.ErrNotExist)

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				ok, err := tx.InsertBinding(ctx, data.NewBinding(slot, 1, "dir_count_v1"))
				require.True(t, ok)
				return err
			}))

			// Inserting over an existing binding reports a conflict
			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				ok, err := tx.InsertBinding(ctx, data.NewBinding(slot, 5, "dir_count_v1"))
				assert.False(t, ok)
				return err
			}))

			// Versions at or above the bound one are never deleted
			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				removed, err := tx.DeleteBinding(ctx, slot, 1)
				assert.Nil(t, removed)
				return err
			}))

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				removed, err := tx.DeleteBinding(ctx, slot, 2)
				if err != nil {
					return err
				}
				require.NotNil(t, removed)
				assert.Equal(t, 1, removed.Version)

				ok, err := tx.InsertBinding(ctx, data.NewBinding(slot, 2, "dir_count_v2"))
				assert.True(t, ok)
				return err
			}))

			require.NoError(t, backend.View(ctx, b, func(tx backend.Tx) error {
				binding, err := tx.ReadBinding(ctx, slot)
				if err != nil {
					return err
				}
				assert.Equal(t, 2, binding.Version)
				assert.Equal(t, "dir_count_v2", binding.Implementation)

				bindings, err := tx.ListBindings(ctx)
				if err != nil {
					return err
				}
				assert.Contains(t, bindingVersions(bindings), slot.String()+"=2")
				return nil
			}))
		})
	}
}

func bindingVersions(bindings []*data.Binding) []string {
	var result []string
	for _, b := range bindings {
		result = append(result, fmt.Sprintf("%s=%d", b.Slot, b.Version))
	}
	return result
}

func TestAllBackends_CounterLifecycle(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			b := openBackend(t, factory)
			root, _ := uniqueNames(t)
			key := root + "/dir"

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				ok, err := tx.IncrementCounter(ctx, key, 1)
				if err != nil {
					return err
				}
				assert.False(t, ok, "increment must miss a missing counter")

				ok, err = tx.InsertCounter(ctx, data.NewCounter(key, 1))
				assert.True(t, ok)
				return err
			}))

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				ok, err := tx.InsertCounter(ctx, data.NewCounter(key, 1))
				if err != nil {
					return err
				}
				assert.False(t, ok)

				ok, err = tx.IncrementCounter(ctx, key, 2)
				assert.True(t, ok)
				return err
			}))

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				counter, err := tx.LockCounter(ctx, key)
				if err != nil {
					return err
				}
				assert.Equal(t, int64(3), counter.Count)

				ok, err := tx.IncrementCounter(ctx, key, -1)
				assert.True(t, ok)
				return err
			}))

			require.NoError(t, backend.View(ctx, b, func(tx backend.Tx) error {
				counters, err := tx.ListCounters(ctx, root+"/")
				if err != nil {
					return err
				}
				require.Len(t, counters, 1)
				assert.Equal(t, key, counters[0].Key)
				assert.Equal(t, int64(2), counters[0].Count)
				return nil
			}))

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				return tx.DeleteCounter(ctx, key)
			}))

			err := backend.Update(ctx, b, func(tx backend.Tx) error {
				_, err := tx.LockCounter(ctx, key)
				return err
			})
			assert.ErrorIs(t, err, data.ErrNotExist)

			err = backend.Update(ctx, b, func(tx backend.Tx) error {
				return tx.DeleteCounter(ctx, key)
			})
			assert.ErrorIs(t, err, data.ErrNotExist)
		})
	}
}

func TestAllBackends_Upsert(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			b := openBackend(t, factory)
			if !b.GetCapabilities().Contains(backend.CapabilityUpsert) {
				t.Skip("backend has no native upsert")
			}
			root, _ := uniqueNames(t)

			for range 3 {
				require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
					upserter, ok := tx.(backend.Upserter)
					require.True(t, ok)
					return upserter.UpsertCounter(ctx, root, 1)
				}))
			}

			require.NoError(t, backend.View(ctx, b, func(tx backend.Tx) error {
				counter, err := tx.ReadCounter(ctx, root)
				if err != nil {
					return err
				}
				assert.Equal(t, int64(3), counter.Count)
				return nil
			}))
		})
	}
}

func TestAllBackends_Metadata(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			b := openBackend(t, factory)
			root, _ := uniqueNames(t)

			meta := data.NewFileMetadata(root+"/a_b.txt", 42)
			meta.ContentType = "text/plain"
			meta.Attributes["owner"] = "ops"

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				if err := tx.InsertMeta(ctx, meta); err != nil {
					return err
				}
				return tx.InsertMeta(ctx, data.NewDirectoryMetadata(root+"/aXb"))
			}))

			err := backend.Update(ctx, b, func(tx backend.Tx) error {
				return tx.InsertMeta(ctx, data.NewFileMetadata(meta.Key, 1))
			})
			require.ErrorIs(t, err, data.ErrExist)

			require.NoError(t, backend.View(ctx, b, func(tx backend.Tx) error {
				got, err := tx.ReadMeta(ctx, meta.Key)
				if err != nil {
					return err
				}
				assert.Equal(t, meta.ID, got.ID)
				assert.Equal(t, int64(42), got.Size)
				assert.Equal(t, "text/plain", got.ContentType)
				assert.Equal(t, "ops", got.Attributes["owner"])

				// "_" in the prefix must not act as a wildcard
				metas, err := tx.ListMeta(ctx, root+"/a_")
				if err != nil {
					return err
				}
				require.Len(t, metas, 1)
				assert.Equal(t, meta.Key, metas[0].Key)
				return nil
			}))

			require.NoError(t, backend.Update(ctx, b, func(tx backend.Tx) error {
				removed, err := tx.DeleteMeta(ctx, meta.Key)
				if err != nil {
					return err
				}
				assert.Equal(t, meta.ID, removed.ID)
				return nil
			}))

			err = backend.View(ctx, b, func(tx backend.Tx) error {
				_, err := tx.ReadMeta(ctx, meta.Key)
				return err
			})
			assert.True(t, errors.Is(err, data.ErrNotExist))
		})
	}
}

func TestAllBackends_ReadOnly(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			b := openBackend(t, factory)
			root, slot := uniqueNames(t)

			err := backend.View(ctx, b, func(tx backend.Tx) error {
				_, err := tx.InsertBinding(ctx, data.NewBinding(slot, 1, "dir_count_v1"))
				return err
			})
			assert.ErrorIs(t, err, data.ErrReadOnly)

			err = backend.View(ctx, b, func(tx backend.Tx) error {
				_, err := tx.IncrementCounter(ctx, root, 1)
				return err
			})
			assert.ErrorIs(t, err, data.ErrReadOnly)
		})
	}
}

func TestAllBackends_RollbackAfterCommit(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			b := openBackend(t, factory)
			root, _ := uniqueNames(t)

			tx, err := b.Begin(ctx, backend.TxOptions{})
			require.NoError(t, err)

			_, err = tx.InsertCounter(ctx, data.NewCounter(root, 1))
			require.NoError(t, err)
			require.NoError(t, tx.Commit(ctx))
			assert.NoError(t, tx.Rollback(ctx))

			require.NoError(t, backend.View(ctx, b, func(tx backend.Tx) error {
				_, err := tx.ReadCounter(ctx, root)
				return err
			}))
		})
	}
}
