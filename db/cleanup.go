package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultRetention is how long run history is kept.
const DefaultRetention = 30 * 24 * time.Hour

// PruneResult counts the rows Prune removed.
type PruneResult struct {
	UpscaleRuns int64 `json:"upscale_runs"`
	WarmupRuns  int64 `json:"warmup_runs"`
}

func (p PruneResult) Total() int64 { return p.UpscaleRuns + p.WarmupRuns }

// Prune deletes history older than olderThan in a single transaction.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (PruneResult, error) {
	conn, err := r.db.db()
	if err != nil {
		return PruneResult{}, err
	}
	cutoff := time.Now().Add(-olderThan).UnixMilli()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return PruneResult{}, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	var res PruneResult
	for _, t := range []struct {
		table string
		n     *int64
	}{
		{"upscale_runs", &res.UpscaleRuns},
		{"warmup_runs", &res.WarmupRuns},
	} {
		out, err := tx.ExecContext(ctx, `DELETE FROM `+t.table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return PruneResult{}, fmt.Errorf("prune %s: %w", t.table, err)
		}
		if *t.n, err = out.RowsAffected(); err != nil {
			return PruneResult{}, fmt.Errorf("prune %s: %w", t.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("commit prune: %w", err)
	}
	return res, nil
}

// StartPruner prunes once immediately and then every interval until ctx is
// done. It runs in its own goroutine.
func (r *Repository) StartPruner(ctx context.Context, logger *zap.Logger, retention, interval time.Duration) {
	prune := func() {
		res, err := r.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("history prune failed", zap.Error(err))
			}
			return
		}
		if res.Total() > 0 {
			logger.Info("pruned run history",
				zap.Int64("upscale_runs", res.UpscaleRuns),
				zap.Int64("warmup_runs", res.WarmupRuns))
		}
	}

	go func() {
		prune()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prune()
			}
		}
	}()
}
