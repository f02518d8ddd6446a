// Package store provides the embedded SQLite database that backs the
// offline reconciliation cache.
//
// The store owns schema creation, indexes, and raw accessors for the
// mirrored reference tables (building, room, department, department_cust,
// asset_table) and the one working table (auditing). It runs in embedded
// mode with WAL so reads stay concurrent with writes.
//
// Writes are single-row upserts: each is its own atomic unit, so a sync
// interrupted mid-collection leaves a mix of old and new rows rather than
// an all-or-nothing state. That trade-off is deliberate; resilience over
// strict consistency.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection with the schema guard.
type DB struct {
	conn *sql.DB
	path string

	// Schema creation runs at most once per process; late callers block
	// on the Once until the in-flight initialization finishes.
	schemaOnce sync.Once
	schemaErr  error
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database file doesn't exist it is created. The caller must call
// Close when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// Safe to call from any entry point: concurrent callers are serialized and
// the DDL runs at most once per process lifetime. A schema error is fatal
// and is returned to every caller, since all downstream operations assume
// the tables exist.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	db.schemaOnce.Do(func() {
		db.schemaErr = db.createSchema(ctx)
	})
	if db.schemaErr != nil {
		return fmt.Errorf("schema initialization failed: %w", db.schemaErr)
	}
	return nil
}

func (db *DB) createSchema(ctx context.Context) error {
	schema := `
	-- Mirrored reference tables
	CREATE TABLE IF NOT EXISTS building (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		name    TEXT UNIQUE NOT NULL,
		bldg_id INTEGER NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS room (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		name     TEXT NOT NULL,
		room_tag TEXT NOT NULL UNIQUE,
		bldg_id  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS department (
		dept_id TEXT PRIMARY KEY,
		name    TEXT UNIQUE NOT NULL,
		manager TEXT
	);

	CREATE TABLE IF NOT EXISTS department_cust (
		custodian TEXT,
		dept_id   TEXT,
		FOREIGN KEY (dept_id) REFERENCES department(dept_id)
			ON DELETE CASCADE ON UPDATE CASCADE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_deptcust_unique
		ON department_cust (custodian, dept_id);

	-- Asset room_tag and dept_id are soft references: reference data may
	-- sync out of order, so the schema does not enforce them.
	CREATE TABLE IF NOT EXISTS asset_table (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		tag           TEXT UNIQUE NOT NULL,
		name          TEXT NOT NULL,
		serial        TEXT NOT NULL,
		dept_id       TEXT,
		po            TEXT,
		model         TEXT,
		manufacturer  TEXT,
		room_tag      TEXT,
		type          TEXT,
		bus_unit      TEXT CHECK(bus_unit IN ('BKCMP', 'BKASI', 'BKSTU', 'BKFDN', 'BKSPA')) DEFAULT 'BKCMP',
		status        TEXT,
		assigned_to   TEXT,
		purchase_date TEXT,
		price         REAL,
		notes         TEXT
	);

	-- Working table for the current audit session
	CREATE TABLE IF NOT EXISTS auditing (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		tag               TEXT UNIQUE NOT NULL,
		name              TEXT NOT NULL,
		serial            TEXT NOT NULL,
		dept_id           TEXT,
		po                TEXT,
		model             TEXT,
		manufacturer      TEXT,
		room_tag          TEXT,
		type              TEXT,
		bus_unit          TEXT CHECK(bus_unit IN ('BKCMP', 'BKASI', 'BKSTU', 'BKFDN', 'BKSPA')) DEFAULT 'BKCMP',
		status            TEXT,
		assigned_to       TEXT,
		purchase_date     TEXT,
		price             REAL,
		notes             TEXT,
		geo_x             REAL,
		geo_y             REAL,
		elevation         REAL,
		found_status      TEXT NOT NULL DEFAULT '',
		found_room_tag    TEXT,
		found_building    TEXT,
		found_room_number TEXT,
		found_timestamp   TEXT,
		audit_id          TEXT,
		location          TEXT
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_building_bldg_id ON building (bldg_id);
	CREATE INDEX IF NOT EXISTS idx_room_room_tag ON room (room_tag);
	CREATE INDEX IF NOT EXISTS idx_department_dept_id ON department (dept_id);
	CREATE INDEX IF NOT EXISTS idx_asset_tag ON asset_table (tag);
	CREATE INDEX IF NOT EXISTS idx_asset_name ON asset_table (name);
	CREATE INDEX IF NOT EXISTS idx_asset_dept ON asset_table (dept_id);
	CREATE INDEX IF NOT EXISTS idx_auditing_tag ON auditing (tag);
	CREATE INDEX IF NOT EXISTS idx_auditing_status ON auditing (found_status);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// tables whitelists the names accepted by Count and ClearTable.
var tables = map[string]bool{
	"building":        true,
	"room":            true,
	"department":      true,
	"department_cust": true,
	"asset_table":     true,
	"auditing":        true,
}

// Count returns the row count of one of the known tables.
func (db *DB) Count(ctx context.Context, table string) (int, error) {
	if !tables[table] {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// ClearTable deletes all rows from one of the known tables and resets its
// auto-increment sequence, so the next insert starts at id 1 again.
func (db *DB) ClearTable(ctx context.Context, table string) error {
	if !tables[table] {
		return fmt.Errorf("unknown table %q", table)
	}

	if _, err := db.conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	// sqlite_sequence only exists once an AUTOINCREMENT table has rows.
	var seq int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='sqlite_sequence'`).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to check sequence table: %w", err)
	}
	if seq > 0 {
		if _, err := db.conn.ExecContext(ctx,
			"DELETE FROM sqlite_sequence WHERE name=?", table); err != nil {
			return fmt.Errorf("failed to reset %s sequence: %w", table, err)
		}
	}

	return nil
}

// ClearAll wipes every table. Used on logout, when the whole local cache
// is discarded along with the credentials.
func (db *DB) ClearAll(ctx context.Context) error {
	for table := range tables {
		if err := db.ClearTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}
