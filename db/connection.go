// Package db stores the history of upscale and warmup runs in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// ConnectionConfig configures a SQLite connection pool.
type ConnectionConfig struct {
	Path string
	// BusyTimeout is how long a writer waits for a lock.
	BusyTimeout time.Duration
	// MaxOpenConns is 1 by default: SQLite allows a single writer.
	MaxOpenConns int
}

func DefaultConnectionConfig(path string) ConnectionConfig {
	return ConnectionConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	}
}

// dsn builds a modernc.org/sqlite DSN. Pragmas in the DSN are applied to
// every new connection, not just the first.
func (c ConnectionConfig) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + c.Path + "?" + q.Encode()
}

// Connect opens a WAL-mode SQLite pool and checks that WAL took effect.
func Connect(ctx context.Context, cfg ConnectionConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	conn, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxOpenConns)

	var mode string
	if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("query journal mode: %w", err)
	}
	if mode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled, got %q", mode)
	}
	return conn, nil
}
