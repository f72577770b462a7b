package data

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Metadata is one row of the metadata table. Every row is a member of the
// directory group addressed by ParentKey(Key).
type Metadata struct {
	ID   string   `json:"id"`
	Key  string   `json:"key"`
	Mode FileMode `json:"mode"`
	Size int64    `json:"size"`

	UID int64 `json:"uid,omitempty"`
	GID int64 `json:"gid,omitempty"`

	ModifyTime time.Time `json:"modify_time"`
	AccessTime time.Time `json:"access_time"`
	CreateTime time.Time `json:"create_time"`

	ContentType string `json:"content_type,omitempty"`
	ETag        string `json:"etag,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

func NewMetadata(key string, mode FileMode, size int64) *Metadata {
	now := time.Now()

	return &Metadata{
		ID:         genID(),
		Key:        key,
		Mode:       mode,
		Size:       size,
		ModifyTime: now,
		AccessTime: now,
		CreateTime: now,
		Attributes: make(map[string]string),
	}
}

// NewFileMetadata creates new metadata for a regular file.
func NewFileMetadata(key string, size int64) *Metadata {
	return NewMetadata(key, 0644, size)
}

// NewDirectoryMetadata creates new metadata for a directory.
func NewDirectoryMetadata(key string) *Metadata {
	return NewMetadata(key, ModeDir|0755, 0)
}

// Clone returns a deep copy of the row.
func (m *Metadata) Clone() *Metadata {
	clone := *m
	clone.Attributes = maps.Clone(m.Attributes)

	return &clone
}

func genID() string {
	return uuid.Must(uuid.NewV7()).String()
}
