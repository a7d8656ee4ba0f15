package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a recorded run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("run not found")

// UpscaleRun is one upscale call.
type UpscaleRun struct {
	ID           uuid.UUID `json:"id"`
	Model        string    `json:"model"`
	Scale        int       `json:"scale"`
	Source       string    `json:"source"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	InputWidth   int       `json:"input_width"`
	InputHeight  int       `json:"input_height"`
	OutputWidth  int       `json:"output_width"`
	OutputHeight int       `json:"output_height"`
	PatchSize    int       `json:"patch_size"`
	Padding      int       `json:"padding"`
	Tiles        int       `json:"tiles"`
	DurationMS   int64     `json:"duration_ms"`
	OutputPath   string    `json:"output_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WarmupRun is one warmup pass over a list of sizes.
type WarmupRun struct {
	ID         uuid.UUID `json:"id"`
	Model      string    `json:"model"`
	Sizes      string    `json:"sizes"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository reads and writes run history.
type Repository struct {
	db *Database
}

func NewRepository(d *Database) *Repository {
	return &Repository{db: d}
}

const upscaleColumns = `id, model, scale, source, status, error_message,
	input_width, input_height, output_width, output_height,
	patch_size, padding, tiles, duration_ms, output_path, created_at`

// InsertUpscaleRun stores run, assigning an ID and timestamp when unset, and
// returns the stored record.
func (r *Repository) InsertUpscaleRun(ctx context.Context, run UpscaleRun) (UpscaleRun, error) {
	conn, err := r.db.db()
	if err != nil {
		return UpscaleRun{}, err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if err := run.Status.validate(); err != nil {
		return UpscaleRun{}, err
	}

	_, err = conn.ExecContext(ctx, `INSERT INTO upscale_runs (`+upscaleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Model, run.Scale, run.Source, string(run.Status), nullString(run.Error),
		run.InputWidth, run.InputHeight, run.OutputWidth, run.OutputHeight,
		run.PatchSize, run.Padding, run.Tiles, run.DurationMS, nullString(run.OutputPath),
		run.CreatedAt.UnixMilli())
	if err != nil {
		return UpscaleRun{}, fmt.Errorf("insert upscale run: %w", err)
	}
	return run, nil
}

// GetUpscaleRun returns the run with id, or ErrNotFound.
func (r *Repository) GetUpscaleRun(ctx context.Context, id uuid.UUID) (UpscaleRun, error) {
	conn, err := r.db.db()
	if err != nil {
		return UpscaleRun{}, err
	}
	row := conn.QueryRowContext(ctx, `SELECT `+upscaleColumns+` FROM upscale_runs WHERE id = ?`, id.String())
	run, err := scanUpscaleRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UpscaleRun{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// RecentUpscaleRuns returns up to limit runs, newest first. A status filters
// the results when non-empty.
func (r *Repository) RecentUpscaleRuns(ctx context.Context, limit int, status Status) ([]UpscaleRun, error) {
	conn, err := r.db.db()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + upscaleColumns + ` FROM upscale_runs`
	args := []any{}
	if status != "" {
		if err := status.validate(); err != nil {
			return nil, err
		}
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query upscale runs: %w", err)
	}
	defer rows.Close()

	var runs []UpscaleRun
	for rows.Next() {
		run, err := scanUpscaleRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountUpscaleRuns returns the number of runs per status.
func (r *Repository) CountUpscaleRuns(ctx context.Context) (map[Status]int64, error) {
	conn, err := r.db.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM upscale_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count upscale runs: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// InsertWarmupRun stores run, assigning an ID and timestamp when unset.
func (r *Repository) InsertWarmupRun(ctx context.Context, run WarmupRun) (WarmupRun, error) {
	conn, err := r.db.db()
	if err != nil {
		return WarmupRun{}, err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if err := run.Status.validate(); err != nil {
		return WarmupRun{}, err
	}

	_, err = conn.ExecContext(ctx, `INSERT INTO warmup_runs
		(id, model, sizes, status, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Model, run.Sizes, string(run.Status), nullString(run.Error),
		run.DurationMS, run.CreatedAt.UnixMilli())
	if err != nil {
		return WarmupRun{}, fmt.Errorf("insert warmup run: %w", err)
	}
	return run, nil
}

// RecentWarmupRuns returns up to limit warmups, newest first.
func (r *Repository) RecentWarmupRuns(ctx context.Context, limit int) ([]WarmupRun, error) {
	conn, err := r.db.db()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := conn.QueryContext(ctx, `SELECT id, model, sizes, status, error_message, duration_ms, created_at
		FROM warmup_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query warmup runs: %w", err)
	}
	defer rows.Close()

	var runs []WarmupRun
	for rows.Next() {
		var (
			run       WarmupRun
			id        string
			status    string
			errMsg    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&id, &run.Model, &run.Sizes, &status, &errMsg, &run.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan warmup run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("warmup run id %q: %w", id, err)
		}
		run.Status = Status(status)
		run.Error = errMsg.String
		run.CreatedAt = time.UnixMilli(createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpscaleRun(s scanner) (UpscaleRun, error) {
	var (
		run        UpscaleRun
		id         string
		status     string
		errMsg     sql.NullString
		outputPath sql.NullString
		createdAt  int64
	)
	err := s.Scan(&id, &run.Model, &run.Scale, &run.Source, &status, &errMsg,
		&run.InputWidth, &run.InputHeight, &run.OutputWidth, &run.OutputHeight,
		&run.PatchSize, &run.Padding, &run.Tiles, &run.DurationMS, &outputPath, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UpscaleRun{}, err
		}
		return UpscaleRun{}, fmt.Errorf("scan upscale run: %w", err)
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return UpscaleRun{}, fmt.Errorf("upscale run id %q: %w", id, err)
	}
	run.Status = Status(status)
	run.Error = errMsg.String
	run.OutputPath = outputPath.String
	run.CreatedAt = time.UnixMilli(createdAt)
	return run, nil
}

func (s Status) validate() error {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return nil
	}
	return fmt.Errorf("invalid run status %q", s)
}

// ParseStatus accepts a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return "", nil
	}
	if err := st.validate(); err != nil {
		return "", err
	}
	return st, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
