package consul

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
)

// ConsulBackend stores all tables as JSON values in the Consul KV store.
//
// Units of work are optimistic: reads are served directly and remembered
// with their ModifyIndex, writes are buffered and applied in one KV
// transaction at commit. Every key read or written is checked against its
// remembered index, so a concurrent change surfaces as data.ErrConflict.
//
// Limitations:
// - Consul KV has a 512KB limit per value
// - A commit holds at most maxTxnOps keys
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV
	closed bool

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string `yaml:"address"`

	// Token for Consul ACL authentication (optional)
	Token string `yaml:"token"`

	// Datacenter to use (optional)
	Datacenter string `yaml:"datacenter"`

	// Namespace for Consul Enterprise (optional)
	Namespace string `yaml:"namespace"`

	// Prefix for all keys in Consul KV (default: "dircount")
	Prefix string `yaml:"prefix"`
}

// NewConsulBackend creates a new Consul-backed storage backend
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	config.Prefix = strings.Trim(config.Prefix, "/")
	if config.Prefix == "" {
		config.Prefix = "dircount"
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.closed {
		return data.ErrClosed
	}

	// Verify the agent is reachable and has a leader
	leader, err := cb.client.Status().Leader()
	if err != nil {
		return err
	}
	if leader == "" {
		return fmt.Errorf("consul: no cluster leader at '%s'", cb.config.Address)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Consul client is stateless
	cb.closed = true
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityMetadata,
			backend.CapabilityCounters,
			backend.CapabilityBindings,
			backend.CapabilityOptimistic,
		},
	}
}

// Begin starts a new optimistic unit of work.
func (cb *ConsulBackend) Begin(ctx context.Context, opts backend.TxOptions) (backend.Tx, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.closed {
		return nil, data.ErrClosed
	}

	return &consulTx{
		cb:       cb,
		readOnly: opts.ReadOnly,
		entries:  make(map[string]*entry),
	}, nil
}

func (cb *ConsulBackend) queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{RequireConsistent: true}).WithContext(ctx)
}

// buildKey constructs the full Consul KV key below the configured prefix
func (cb *ConsulBackend) buildKey(parts ...string) string {
	return cb.config.Prefix + "/" + strings.Join(parts, "/")
}
