package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
)

const metadataColumns = "id, key, mode, size, uid, gid, modify_time, access_time, create_time, content_type, etag, attributes"

func (t *sqliteTx) InsertMeta(ctx context.Context, meta *data.Metadata) error {
	if err := t.check(true); err != nil {
		return err
	}

	// Serialize attributes to JSON
	var attributesJSON sql.NullString
	if len(meta.Attributes) > 0 {
		bytes, err := json.Marshal(meta.Attributes)
		if err != nil {
			return err
		}
		attributesJSON = sql.NullString{String: string(bytes), Valid: true}
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO vfs_metadata (`+metadataColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, meta.ID, meta.Key, int64(meta.Mode), meta.Size,
		nullInt64(meta.UID), nullInt64(meta.GID),
		meta.ModifyTime.Unix(), meta.AccessTime.Unix(), meta.CreateTime.Unix(),
		nullString(meta.ContentType), nullString(meta.ETag), attributesJSON)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return data.ErrExist
	}
	return nil
}

func (t *sqliteTx) DeleteMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	meta, err := scanMeta(t.tx.QueryRowContext(ctx, `
		DELETE FROM vfs_metadata WHERE key = ? RETURNING `+metadataColumns, key))
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (t *sqliteTx) ReadMeta(ctx context.Context, key string) (*data.Metadata, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	return scanMeta(t.tx.QueryRowContext(ctx, `
		SELECT `+metadataColumns+` FROM vfs_metadata WHERE key = ?`, key))
}

func (t *sqliteTx) ListMeta(ctx context.Context, prefix string) ([]*data.Metadata, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+metadataColumns+` FROM vfs_metadata
		WHERE key LIKE ? ESCAPE '\' ORDER BY key`, backend.PrefixPattern(prefix))
	if err != nil {
		return nil, err
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

func scanMeta(row rowScanner) (*data.Metadata, error) {
	var meta data.Metadata
	var mode int64
	var uid, gid sql.NullInt64
	var contentType, etag sql.NullString
	var attributesJSON sql.NullString
	var modifyTime, accessTime, createTime int64

	err := row.Scan(&meta.ID, &meta.Key, &mode, &meta.Size,
		&uid, &gid, &modifyTime, &accessTime, &createTime,
		&contentType, &etag, &attributesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	meta.Mode = data.FileMode(mode)
	meta.UID = uid.Int64
	meta.GID = gid.Int64
	meta.ModifyTime = unixTime(modifyTime)
	meta.AccessTime = unixTime(accessTime)
	meta.CreateTime = unixTime(createTime)
	meta.ContentType = contentType.String
	meta.ETag = etag.String

	meta.Attributes = make(map[string]string)
	if attributesJSON.Valid && strings.TrimSpace(attributesJSON.String) != "" {
		if err := json.Unmarshal([]byte(attributesJSON.String), &meta.Attributes); err != nil {
			return nil, err
		}
	}

	return &meta, nil
}
