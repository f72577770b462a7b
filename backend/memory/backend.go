package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
	"github.com/tidwall/btree"
)

// MemoryBackend keeps all tables in ordered in-memory B-trees.
//
// Writes of a unit of work are buffered in a private overlay and become
// visible to others only when it commits, so plain reads behave like
// READ COMMITTED. Every written or locked row is guarded by an exclusive
// row lock held until the unit of work ends.
type MemoryBackend struct {
	mu     sync.RWMutex
	closed bool

	bindings *btree.Map[string, data.Binding]
	counters *btree.Map[string, data.Counter]
	metadata *btree.Map[string, data.Metadata]

	locks  *lockTable
	nextTx atomic.Uint64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		bindings: btree.NewMap[string, data.Binding](0),
		counters: btree.NewMap[string, data.Counter](0),
		metadata: btree.NewMap[string, data.Metadata](0),
		locks:    newLockTable(),
	}
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.closed = false
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.closed = true
	mb.bindings.Clear()
	mb.counters.Clear()
	mb.metadata.Clear()
	mb.locks.clear()

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityMetadata,
			backend.CapabilityCounters,
			backend.CapabilityBindings,
			backend.CapabilityRowLock,
			backend.CapabilityUpsert,
		},
	}
}

// Begin starts a new unit of work.
func (mb *MemoryBackend) Begin(ctx context.Context, opts backend.TxOptions) (backend.Tx, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if mb.closed {
		return nil, data.ErrClosed
	}

	return &memoryTx{
		mb:       mb,
		id:       mb.nextTx.Add(1),
		readOnly: opts.ReadOnly,
		bindings: make(overlay[data.Binding]),
		counters: make(overlay[data.Counter]),
		metadata: make(overlay[data.Metadata]),
	}, nil
}
