// Package blob stores object content next to the metadata catalog.
package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/mwantia/dircount/data"
	"github.com/tidwall/btree"
)

// Store holds object content addressed by object key.
type Store interface {
	Name() string

	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get returns data.ErrNotExist for unknown keys.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete returns data.ErrNotExist for unknown keys.
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps content in an ordered in-process map.
type MemoryStore struct {
	mu      sync.RWMutex
	objects *btree.Map[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: btree.NewMap[string, []byte](0),
	}
}

func (*MemoryStore) Name() string {
	return "memory"
}

func (ms *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.objects.Set(key, buf.Bytes())
	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	content, exists := ms.objects.Get(key)
	if !exists {
		return nil, data.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, deleted := ms.objects.Delete(key); !deleted {
		return data.ErrNotExist
	}
	return nil
}

// Keys returns all stored keys below prefix in order.
func (ms *MemoryStore) Keys(prefix string) []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var keys []string
	ms.objects.Ascend(prefix, func(key string, _ []byte) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys
}
