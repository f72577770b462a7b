package backend

import "slices"

// Capability represents a storage feature that a backend can provide.
type Capability string

const (
	// Tables provided by every backend
	CapabilityMetadata Capability = "metadata"
	CapabilityCounters Capability = "counters"
	CapabilityBindings Capability = "bindings"

	// LockCounter blocks concurrent writers of the same key until commit.
	CapabilityRowLock Capability = "row_lock"
	// The unit of work implements Upserter.
	CapabilityUpsert Capability = "upsert"
	// Conflicts are only detected at commit and surface as data.ErrConflict.
	CapabilityOptimistic Capability = "optimistic"
)

// Capabilities describes what a backend supports
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
}

// Contains checks if a capability is supported
func (c *Capabilities) Contains(capability Capability) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Capabilities, capability)
}
