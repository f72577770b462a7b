package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
)

const metadataColumns = "id, key, mode, size, uid, gid, modify_time, access_time, create_time, content_type, etag, attributes"

func (t *postgresTx) InsertMeta(ctx context.Context, meta *data.Metadata) error {
	if err := t.check(true); err != nil {
		return err
	}

	var attributesJSON *string
	if len(meta.Attributes) > 0 {
		bytes, err := json.Marshal(meta.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
		attributesJSON = nullString(string(bytes))
	}

	// A savepoint keeps the surrounding unit of work usable after a duplicate key
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer sp.Rollback(ctx)

	_, err = sp.Exec(ctx, `
		INSERT INTO vfs_metadata (`+metadataColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
	`, meta.ID, meta.Key, int64(meta.Mode), meta.Size,
		nullInt64(meta.UID), nullInt64(meta.GID),
		meta.ModifyTime.Unix(), meta.AccessTime.Unix(), meta.CreateTime.Unix(),
		nullString(meta.ContentType), nullString(meta.ETag), attributesJSON)
	if isUniqueViolation(err) {
		return data.ErrExist
	}
	if err != nil {
		return fmt.Errorf("failed to insert metadata: %w", err)
	}

	return sp.Commit(ctx)
}

func (t *postgresTx) DeleteMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	return scanMeta(t.tx.QueryRow(ctx, `
		DELETE FROM vfs_metadata WHERE key = $1 RETURNING `+metadataColumns, key))
}

func (t *postgresTx) ReadMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return scanMeta(t.tx.QueryRow(ctx, `
		SELECT `+metadataColumns+` FROM vfs_metadata WHERE key = $1`, key))
}

func (t *postgresTx) ListMeta(ctx context.Context, prefix string) ([]*data.Metadata, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT `+metadataColumns+` FROM vfs_metadata
		WHERE key LIKE $1 ESCAPE '\' ORDER BY key`, backend.PrefixPattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var metas []*data.Metadata
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}

	return metas, rows.Err()
}

func scanMeta(row pgx.Row) (*data.Metadata, error) {
	var meta data.Metadata
	var mode int64
	var uid, gid *int64
	var contentType, etag, attributesJSON *string
	var modifyTime, accessTime, createTime int64

	err := row.Scan(&meta.ID, &meta.Key, &mode, &meta.Size,
		&uid, &gid, &modifyTime, &accessTime, &createTime,
		&contentType, &etag, &attributesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan metadata: %w", err)
	}

	meta.Mode = data.FileMode(mode)
	meta.ModifyTime = time.Unix(modifyTime, 0)
	meta.AccessTime = time.Unix(accessTime, 0)
	meta.CreateTime = time.Unix(createTime, 0)

	if uid != nil {
		meta.UID = *uid
	}
	if gid != nil {
		meta.GID = *gid
	}
	if contentType != nil {
		meta.ContentType = *contentType
	}
	if etag != nil {
		meta.ETag = *etag
	}

	meta.Attributes = make(map[string]string)
	if attributesJSON != nil {
		if err := json.Unmarshal([]byte(*attributesJSON), &meta.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}

	return &meta, nil
}
