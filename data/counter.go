package data

import "time"

// Counter holds the number of live members of one directory.
// A counter only exists while Count >= 1.
type Counter struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`

	// Carried for the surrounding schema, never interpreted here.
	ID         string    `json:"id"`
	Mode       FileMode  `json:"mode"`
	CreateTime time.Time `json:"create_time"`
	ModifyTime time.Time `json:"modify_time"`
}

// NewCounter creates the first counter row for a directory key.
func NewCounter(key string, count int64) *Counter {
	now := time.Now()

	return &Counter{
		Key:        key,
		Count:      count,
		ID:         genID(),
		Mode:       ModeDir | 0755,
		CreateTime: now,
		ModifyTime: now,
	}
}
