package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/baseline"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type matchdayBaselineInsertModel struct {
	ManagerID            int           `db:"manager_id"`
	GameweekID           int           `db:"gameweek_id"`
	MatchdaySequence     int           `db:"matchday_sequence"`
	MatchdayDate         time.Time     `db:"matchday_date"`
	FirstKickoffAt       time.Time     `db:"first_kickoff_at"`
	OverallRankBaseline  sql.NullInt64 `db:"overall_rank_baseline"`
	GameweekRankBaseline sql.NullInt64 `db:"gameweek_rank_baseline"`
}

type BaselineRepository struct {
	db *sqlx.DB
}

var _ baseline.Repository = (*BaselineRepository)(nil)

func NewBaselineRepository(db *sqlx.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// UpsertMany is write-once per (manager, gameweek, sequence): a snapshot that
// already exists is kept, not replaced.
func (r *BaselineRepository) UpsertMany(ctx context.Context, items []baseline.MatchdayBaseline) error {
	for _, item := range items {
		insertModel := matchdayBaselineInsertModel{
			ManagerID:            item.ManagerID,
			GameweekID:           item.GameweekID,
			MatchdaySequence:     item.MatchdaySequence,
			MatchdayDate:         item.MatchdayDate.UTC(),
			FirstKickoffAt:       item.FirstKickoffAt.UTC(),
			OverallRankBaseline:  intPtrToNullInt64(item.OverallRankBaseline),
			GameweekRankBaseline: intPtrToNullInt64(item.GameweekRankBaseline),
		}
		query, args, err := qb.InsertModel("matchday_baselines", insertModel,
			"ON CONFLICT (manager_id, gameweek_id, matchday_sequence) DO NOTHING")
		if err != nil {
			return fmt.Errorf("build upsert matchday baseline query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert matchday baseline manager=%d gw=%d seq=%d: %w",
				item.ManagerID, item.GameweekID, item.MatchdaySequence, err)
		}
	}
	return nil
}

func (r *BaselineRepository) Exists(ctx context.Context, gameweekID, sequence int) (bool, error) {
	query, args, err := qb.Select("COUNT(*)").From("matchday_baselines").
		Where(
			qb.Eq("gameweek_id", gameweekID),
			qb.Eq("matchday_sequence", sequence),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build matchday baseline exists query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check matchday baseline gw=%d seq=%d: %w", gameweekID, sequence, err)
	}
	return count > 0, nil
}
