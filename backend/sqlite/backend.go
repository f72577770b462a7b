package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores all tables in a single SQLite database.
//
// SQLite allows a single writer, so the pool is limited to one connection and
// every unit of work runs exclusively. That makes LockCounter a plain read:
// no other writer can touch the row until the unit of work ends. Read-only
// units of work share the same connection, so a View (the installer's lock-free
// binding check among them) still waits behind an active writer.
type SQLiteBackend struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewSQLiteBackend creates a new SQLite-backed storage backend.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Single writer, also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	sb := &SQLiteBackend{
		db: db,
	}

	ctx := context.Background()
	if err := sb.applyPragmas(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := sb.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

func (sb *SQLiteBackend) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := sb.db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}
	return nil
}

// migrate applies all schema versions above the recorded one in a single transaction.
func (sb *SQLiteBackend) migrate(ctx context.Context) (err error) {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
)`); err != nil {
		return err
	}

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}

	for i, migration := range migrations {
		target := i + 1
		if version >= target {
			continue
		}

		for _, stmt := range migration {
			if _, err = tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)", target, time.Now().Unix()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS vfs_metadata (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			mode INTEGER NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			uid INTEGER,
			gid INTEGER,
			modify_time INTEGER NOT NULL,
			access_time INTEGER NOT NULL,
			create_time INTEGER NOT NULL,
			content_type TEXT,
			etag TEXT,
			attributes TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS vfs_dir_counts (
			key TEXT PRIMARY KEY,
			count INTEGER NOT NULL CHECK(count > 0),
			id TEXT NOT NULL,
			mode INTEGER NOT NULL,
			create_time INTEGER NOT NULL,
			modify_time INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vfs_hook_bindings (
			table_name TEXT NOT NULL,
			hook_name TEXT NOT NULL,
			version INTEGER NOT NULL CHECK(version >= 0),
			implementation TEXT NOT NULL,
			install_time INTEGER NOT NULL,
			PRIMARY KEY(table_name, hook_name)
		)`,
	},
}

// Name returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if sb.closed {
		return data.ErrClosed
	}

	return sb.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.closed {
		return nil
	}

	sb.closed = true
	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.Capabilities {
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

// Begin starts a new unit of work. It blocks while another one is active,
// read-only or not.
func (sb *SQLiteBackend) Begin(ctx context.Context, opts backend.TxOptions) (backend.Tx, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if sb.closed {
		return nil, data.ErrClosed
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqliteTx{
		tx:       tx,
		readOnly: opts.ReadOnly,
	}, nil
}
