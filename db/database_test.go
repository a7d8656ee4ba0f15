package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_CreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	d, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if err := d.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	version, dirty, err := MigrationVersion(context.Background(), path)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("version = %d dirty = %v, want 2 clean", version, dirty)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		d, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		d.Close()
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("Open(\"\") returned nil error")
	}
}

func TestDatabase_Close(t *testing.T) {
	d := openTestDB(t)
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := d.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after Close = %v, want ErrClosed", err)
	}
}

func TestConnect_EnablesWAL(t *testing.T) {
	cfg := DefaultConnectionConfig(filepath.Join(t.TempDir(), "wal.db"))
	if !strings.Contains(cfg.dsn(), "journal_mode%28WAL%29") {
		t.Errorf("dsn() = %q, missing WAL pragma", cfg.dsn())
	}

	conn, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrateDown(t *testing.T) {
	d := openTestDB(t)
	path := d.Path()
	d.Close()

	if err := MigrateDown(context.Background(), path, 1); err != nil {
		t.Fatalf("MigrateDown(1) error = %v", err)
	}
	if v, _, _ := MigrationVersion(context.Background(), path); v != 1 {
		t.Errorf("version after one step down = %d, want 1", v)
	}
	if err := MigrateDown(context.Background(), path, -1); err != nil {
		t.Fatalf("MigrateDown(all) error = %v", err)
	}
	if v, _, _ := MigrationVersion(context.Background(), path); v != 0 {
		t.Errorf("version after full rollback = %d, want 0", v)
	}
	if err := MigrateUp(context.Background(), path); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
}
