package data

import "time"

// Attribute keys written by the catalog.
const (
	AttributeChecksum = "checksum" // algorithm of the ETag
	AttributeBlob     = "blob"     // blob store key of the content
)

// GetAttribute returns the attribute for key or fallback if unset.
func (m *Metadata) GetAttribute(key, fallback string) string {
	if v, ok := m.Attributes[key]; ok {
		return v
	}
	return fallback
}

// SetAttribute stores an attribute and touches the modify time.
func (m *Metadata) SetAttribute(key, value string) {
	if m.Attributes == nil {
		m.Attributes = map[string]string{}
	}
	m.Attributes[key] = value
	m.ModifyTime = time.Now()
}
