package memory

import (
	"context"

	"github.com/mwantia/dircount/data"
)

func (tx *memoryTx) InsertMeta(ctx context.Context, meta *data.Metadata) error {
	if err := tx.check(true); err != nil {
		return err
	}

	if err := tx.lock(ctx, tableMetadata, meta.Key); err != nil {
		return err
	}

	if _, exists := lookup(tx.mb, tx.mb.metadata, tx.metadata, meta.Key); exists {
		return data.ErrExist
	}

	tx.metadata[meta.Key] = meta.Clone()
	return nil
}

func (tx *memoryTx) DeleteMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := tx.check(true); err != nil {
		return nil, err
	}

	if err := tx.lock(ctx, tableMetadata, key); err != nil {
		return nil, err
	}

	meta, exists := lookup(tx.mb, tx.mb.metadata, tx.metadata, key)
	if !exists {
		return nil, data.ErrNotExist
	}

	tx.metadata[key] = nil
	return meta.Clone(), nil
}

func (tx *memoryTx) ReadMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}

	meta, exists := lookup(tx.mb, tx.mb.metadata, tx.metadata, key)
	if !exists {
		return nil, data.ErrNotExist
	}
	return meta.Clone(), nil
}

func (tx *memoryTx) ListMeta(ctx context.Context, prefix string) ([]*data.Metadata, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}

	rows := scan(tx.mb, tx.mb.metadata, tx.metadata, prefix)
	metas := make([]*data.Metadata, len(rows))
	for i := range rows {
		metas[i] = rows[i].Clone()
	}
	return metas, nil
}
