// Package catalog owns the metadata table. Every insert and delete runs the
// hook bound to the table within the same unit of work.
package catalog

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/blob"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/hook"
	"github.com/mwantia/dircount/log"
	"github.com/mwantia/dircount/metrics"
	"github.com/zeebo/blake3"
)

type Catalog struct {
	backend  backend.Backend
	registry *hook.Registry
	blobs    blob.Store

	slot        data.Slot
	maxAttempts int

	log     *log.Logger
	metrics *metrics.Metrics
}

func NewCatalog(b backend.Backend, registry *hook.Registry, opts ...CatalogOption) (*Catalog, error) {
	options := newDefaultCatalogOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return &Catalog{
		backend:     b,
		registry:    registry,
		blobs:       options.Blobs,
		slot:        options.Slot,
		maxAttempts: options.MaxAttempts,
		log:         options.Logger,
		metrics:     options.Metrics,
	}, nil
}

// Slot returns the hook slot fired by this catalog.
func (c *Catalog) Slot() data.Slot {
	return c.slot
}

// Create inserts meta and fires the insert hook. It fails with
// data.ErrUnbound while no hook is bound to the slot.
func (c *Catalog) Create(ctx context.Context, meta *data.Metadata) error {
	key, err := memberKey(meta.Key)
	if err != nil {
		return err
	}
	meta.Key = key

	return c.update(ctx, func(tx backend.Tx) error {
		if err := tx.InsertMeta(ctx, meta); err != nil {
			return fmt.Errorf("failed to create '%s': %w", key, err)
		}
		return c.fire(ctx, tx, meta, true)
	})
}

// Mkdir creates a directory entry.
func (c *Catalog) Mkdir(ctx context.Context, key string) (*data.Metadata, error) {
	meta := data.NewDirectoryMetadata(key)
	if err := c.Create(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Put stores the content read from r and creates a file entry for it. The
// ETag is the BLAKE3 digest of the content. Content is stored under the
// entry ID, so a rejected Put never touches the content of another entry.
// Without a blob store the content is only hashed.
func (c *Catalog) Put(ctx context.Context, key string, r io.Reader, contentType string) (*data.Metadata, error) {
	key, err := memberKey(key)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = data.ContentTypeOf(key)
	}

	meta := data.NewFileMetadata(key, 0)
	meta.ContentType = contentType

	hasher := blake3.New()
	counter := &countingWriter{}
	tee := io.TeeReader(r, io.MultiWriter(hasher, counter))

	if c.blobs != nil {
		if err := c.blobs.Put(ctx, meta.ID, tee, -1, contentType); err != nil {
			return nil, fmt.Errorf("failed to store content of '%s': %w", key, err)
		}
	} else if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, fmt.Errorf("failed to read content of '%s': %w", key, err)
	}

	meta.Size = counter.n
	meta.ETag = hex.EncodeToString(hasher.Sum(nil))
	meta.SetAttribute(data.AttributeChecksum, "blake3")
	if c.blobs != nil {
		meta.SetAttribute(data.AttributeBlob, meta.ID)
	}

	if err := c.Create(ctx, meta); err != nil {
		if c.blobs != nil {
			if err := c.blobs.Delete(ctx, meta.ID); err != nil {
				c.log.Warn("Failed to clean up content of '%s': %v", key, err)
			}
		}
		return nil, err
	}

	return meta, nil
}

// Remove deletes the entry for key, fires the delete hook and drops its
// content afterwards.
func (c *Catalog) Remove(ctx context.Context, key string) (*data.Metadata, error) {
	key, err := memberKey(key)
	if err != nil {
		return nil, err
	}

	var removed *data.Metadata
	err = c.update(ctx, func(tx backend.Tx) error {
		meta, err := tx.DeleteMeta(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to remove '%s': %w", key, err)
		}
		removed = meta
		return c.fire(ctx, tx, meta, false)
	})
	if err != nil {
		return nil, err
	}

	if c.blobs != nil && !removed.Mode.IsDir() {
		if err := c.blobs.Delete(ctx, removed.ID); err != nil && !errors.Is(err, data.ErrNotExist) {
			c.log.Warn("Failed to delete content of '%s': %v", key, err)
		}
	}

	return removed, nil
}

// Open returns the content of the file at key.
func (c *Catalog) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if c.blobs == nil {
		return nil, fmt.Errorf("no blob store configured: %w", data.ErrUnsupported)
	}

	meta, err := c.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if meta.Mode.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory: %w", meta.Key, data.ErrUnsupported)
	}
	return c.blobs.Get(ctx, meta.ID)
}

// fire runs the bound hook for row. Members are never written while the slot
// is unbound, so every live member has been counted.
func (c *Catalog) fire(ctx context.Context, tx backend.Tx, row *data.Metadata, insert bool) error {
	h, binding, err := c.registry.Resolve(ctx, tx, c.slot)
	if errors.Is(err, data.ErrNotExist) {
		c.log.Warn("Refusing to write '%s': no hook bound to %s", row.Key, c.slot)
		return fmt.Errorf("%w: %s", data.ErrUnbound, c.slot)
	}
	if err != nil {
		return err
	}

	if insert {
		err = h.OnInsert(ctx, tx, row)
	} else {
		err = h.OnDelete(ctx, tx, row)
	}
	if err != nil {
		return fmt.Errorf("hook %s: %w", binding, err)
	}
	return nil
}

// update runs fn in a unit of work and retries it after commit conflicts.
func (c *Catalog) update(ctx context.Context, fn func(tx backend.Tx) error) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = backend.Update(ctx, c.backend, fn)
		if !errors.Is(err, data.ErrConflict) {
			return err
		}

		c.log.Debug("Unit of work conflicted, retrying (attempt %d/%d): %v", attempt, c.maxAttempts, err)
		c.metrics.ObserveUnitRetry()
	}

	return fmt.Errorf("%w: unit of work after %d attempts: %w", data.ErrRetryExhausted, c.maxAttempts, err)
}

// memberKey cleans key and rejects the root, which is never a member.
func memberKey(key string) (string, error) {
	key, err := data.CleanKey(key)
	if err != nil {
		return "", err
	}
	if data.IsRoot(key) {
		return "", fmt.Errorf("%w: root cannot be created or removed", data.ErrInvalidKey)
	}
	return key, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
