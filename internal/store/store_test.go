package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dataworks/fieldaudit/internal/model"
)

// testDB opens an initialized database in a temp directory.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

// TestOpen_Success tests database creation.
func TestOpen_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

// TestInitSchema_Success tests that all tables exist after init.
func TestInitSchema_Success(t *testing.T) {
	db := testDB(t)

	for table := range tables {
		var count int
		err := db.conn.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

// TestInitSchema_Idempotent tests repeated initialization.
func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 3; i++ {
		if err := db.InitSchema(); err != nil {
			t.Fatalf("InitSchema() call %d failed: %v", i+1, err)
		}
	}
}

// TestInitSchema_Concurrent tests that racing callers all succeed and
// share one initialization.
func TestInitSchema_Concurrent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.InitSchema()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent InitSchema() failed: %v", err)
		}
	}
}

// TestCount_UnknownTable tests the table whitelist.
func TestCount_UnknownTable(t *testing.T) {
	db := testDB(t)
	if _, err := db.Count(context.Background(), "sqlite_master"); err == nil {
		t.Error("Count() accepted a table outside the whitelist")
	}
}

// TestClearTable_ResetsSequence tests that clearing auditing restarts
// the auto-increment id at 1.
func TestClearTable_ResetsSequence(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, tag := range []string{"T-1", "T-2", "T-3"} {
		row := &model.AuditingRow{Asset: model.Asset{Tag: tag, Name: "thing"}}
		if err := db.UpsertAuditingRow(ctx, row); err != nil {
			t.Fatalf("UpsertAuditingRow(%s) failed: %v", tag, err)
		}
	}

	if err := db.ClearTable(ctx, "auditing"); err != nil {
		t.Fatalf("ClearTable() failed: %v", err)
	}
	n, err := db.Count(ctx, "auditing")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("count after clear = %d, want 0", n)
	}

	row := &model.AuditingRow{Asset: model.Asset{Tag: "T-4", Name: "thing"}}
	if err := db.UpsertAuditingRow(ctx, row); err != nil {
		t.Fatalf("UpsertAuditingRow() failed: %v", err)
	}
	var id int64
	if err := db.conn.QueryRow(`SELECT id FROM auditing WHERE tag = 'T-4'`).Scan(&id); err != nil {
		t.Fatalf("failed to read id: %v", err)
	}
	if id != 1 {
		t.Errorf("first id after clear = %d, want 1", id)
	}
}

// TestClearAll_EmptiesEveryTable tests the wholesale reset used on logout.
func TestClearAll_EmptiesEveryTable(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertBuilding(ctx, &model.Building{BldgID: 1, Name: "North Hall"}); err != nil {
		t.Fatalf("UpsertBuilding() failed: %v", err)
	}
	if err := db.UpsertAsset(ctx, &model.Asset{Tag: "A-1", Name: "Laptop"}); err != nil {
		t.Fatalf("UpsertAsset() failed: %v", err)
	}

	if err := db.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() failed: %v", err)
	}
	for table := range tables {
		n, err := db.Count(ctx, table)
		if err != nil {
			t.Fatalf("Count(%s) failed: %v", table, err)
		}
		if n != 0 {
			t.Errorf("table %s has %d rows after ClearAll", table, n)
		}
	}
}
