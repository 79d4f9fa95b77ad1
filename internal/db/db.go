// Package db provides the SQLite backing store for the approval ledger.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the schema version this build expects.
const SchemaVersion = 2

// ErrSchemaMismatch is returned by ValidateSchema when the stored version differs.
var ErrSchemaMismatch = errors.New("database schema version mismatch")

// migrations are applied in order; index i holds version i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS approvals (
		key         TEXT PRIMARY KEY,
		command_id  TEXT NOT NULL,
		request_id  TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'denied')),
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		decided_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
	CREATE INDEX IF NOT EXISTS idx_approvals_command ON approvals(command_id);
	`,
	// consumed status and consumed_at. SQLite cannot alter a CHECK constraint in place.
	`
	CREATE TABLE approvals_v2 (
		key         TEXT PRIMARY KEY,
		command_id  TEXT NOT NULL,
		request_id  TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'denied', 'consumed')),
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		decided_at  TEXT,
		consumed_at TEXT
	);
	INSERT INTO approvals_v2 (key, command_id, request_id, status, description, created_at, decided_at)
		SELECT key, command_id, request_id, status, description, created_at, decided_at FROM approvals;
	DROP TABLE approvals;
	ALTER TABLE approvals_v2 RENAME TO approvals;
	CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
	CREATE INDEX IF NOT EXISTS idx_approvals_command ON approvals(command_id);
	`,
}

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// OpenOptions controls how a database is opened.
type OpenOptions struct {
	// CreateIfNotExists creates the parent directory and file.
	CreateIfNotExists bool
	// InitSchema applies pending migrations after opening.
	InitSchema bool
	// ReadOnly opens the file in read-only mode.
	ReadOnly bool
}

// Open opens (creating if needed) the database at path and initializes the schema.
func Open(path string) (*DB, error) {
	return OpenWithOptions(path, OpenOptions{CreateIfNotExists: true, InitSchema: true})
}

// OpenAndMigrate opens the database at path and ensures all migrations are applied.
func OpenAndMigrate(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenProjectDB opens the project ledger database at <projectDir>/.gatekeeper/state.db.
func OpenProjectDB(projectDir string) (*DB, error) {
	return OpenAndMigrate(filepath.Join(projectDir, ".gatekeeper", "state.db"))
}

// OpenWithOptions opens the database at path.
func OpenWithOptions(path string, opts OpenOptions) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	memory := path == ":memory:"

	if !memory && opts.CreateIfNotExists && !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	if !memory && !opts.CreateIfNotExists {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database %s: %w", path, err)
		}
	}

	conn, err := sql.Open("sqlite", dsn(path, opts.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database %s: %w", path, err)
	}

	db := &DB{conn: conn, path: path}
	if opts.InitSchema && !opts.ReadOnly {
		if err := db.ApplyMigrations(context.Background()); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return db, nil
}

func dsn(path string, readOnly bool) string {
	if path == ":memory:" {
		return path
	}
	params := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	if readOnly {
		params = append(params, "mode=ro")
	} else {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// TransactionContext runs fn inside a transaction. The transaction is rolled back if fn
// returns an error or panics.
func (db *DB) TransactionContext(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ApplyMigrations applies every migration newer than the stored version.
func (db *DB) ApplyMigrations(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		err := db.TransactionContext(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
	}
	return nil
}

// GetSchemaVersion returns the highest applied migration version.
func (db *DB) GetSchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// ValidateSchema checks the stored schema version and required tables.
func (db *DB) ValidateSchema() error {
	version, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("%w: have %d, want %d", ErrSchemaMismatch, version, SchemaVersion)
	}

	for _, table := range []string{"schema_migrations", "approvals"} {
		var name string
		err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("missing table %s", table)
			}
			return fmt.Errorf("checking table %s: %w", table, err)
		}
	}
	return nil
}
