package postgres

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/refreshlog"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type RefreshLogRepository struct {
	db *sqlx.DB
}

var _ refreshlog.Repository = (*RefreshLogRepository)(nil)

func NewRefreshLogRepository(db *sqlx.DB) *RefreshLogRepository {
	return &RefreshLogRepository{db: db}
}

func (r *RefreshLogRepository) InsertEvent(ctx context.Context, path string) error {
	query, args, err := qb.InsertInto("refresh_events").
		Columns("path", "occurred_at").
		Values(path, time.Now().UTC()).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert refresh event query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert refresh event path=%s: %w", path, err)
	}
	return nil
}

func (r *RefreshLogRepository) StartBatchRun(ctx context.Context, gameweekID int) (int64, error) {
	query, args, err := qb.InsertInto("refresh_batch_runs").
		Columns("gameweek_id", "started_at").
		Values(gameweekID, time.Now().UTC()).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build start batch run query: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("start batch run gw=%d: %w", gameweekID, err)
	}
	return id, nil
}

func (r *RefreshLogRepository) FinishBatchRun(ctx context.Context, id int64, success bool, failureReason string, phases map[string]time.Duration) error {
	query, args, err := qb.Update("refresh_batch_runs").
		SetExpr("finished_at", "NOW()").
		Set("success", success).
		Set("failure_reason", failureReason).
		Set("phase_breakdown", encodePhaseBreakdown(phases)).
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build finish batch run query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("finish batch run id=%d: %w", id, err)
	}
	return nil
}

func (r *RefreshLogRepository) HasSuccessfulBatch(ctx context.Context, gameweekID int) (bool, error) {
	query, args, err := qb.Select("COUNT(*)").From("refresh_batch_runs").
		Where(
			qb.Eq("gameweek_id", gameweekID),
			qb.Eq("success", true),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build has successful batch query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check successful batch gw=%d: %w", gameweekID, err)
	}
	return count > 0, nil
}

func encodePhaseBreakdown(phases map[string]time.Duration) string {
	if len(phases) == 0 {
		return "{}"
	}
	readable := make(map[string]string, len(phases))
	for name, elapsed := range phases {
		readable[name] = elapsed.Round(time.Millisecond).String()
	}
	encoded, err := sonic.Marshal(readable)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
