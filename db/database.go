package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by operations on a closed Database.
var ErrClosed = errors.New("database is closed")

// Database is a migrated SQLite database.
//
//	d, err := db.Open(ctx, core.GetDataFilePath("history.db"))
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//	runs := db.NewRepository(d)
type Database struct {
	mu   sync.RWMutex
	conn *sql.DB
	path string
}

// Open creates the parent directory if needed, applies pending migrations
// and connects.
func Open(ctx context.Context, path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	if err := MigrateUp(ctx, path); err != nil {
		return nil, err
	}
	conn, err := Connect(ctx, DefaultConnectionConfig(path))
	if err != nil {
		return nil, err
	}
	return &Database{conn: conn, path: path}, nil
}

func (d *Database) Path() string { return d.path }

// db returns the pool, or ErrClosed.
func (d *Database) db() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return nil, ErrClosed
	}
	return d.conn, nil
}

// Ping checks the connection, for health reporting.
func (d *Database) Ping(ctx context.Context) error {
	conn, err := d.db()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

// Close closes the pool. Further calls are no-ops.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
