package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/gameweek"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type GameweekRepository struct {
	db *sqlx.DB
}

var _ gameweek.Repository = (*GameweekRepository)(nil)

func NewGameweekRepository(db *sqlx.DB) *GameweekRepository {
	return &GameweekRepository{db: db}
}

// UpsertMany mirrors upstream events. ranks_finalized is locally owned and
// deliberately absent from the update list.
func (r *GameweekRepository) UpsertMany(ctx context.Context, items []gameweek.Gameweek) error {
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		insertModel := gameweekInsertModel{
			ID:          item.ID,
			Name:        item.Name,
			DeadlineAt:  item.DeadlineAt.UTC(),
			ReleaseAt:   timePtrToNullTime(item.ReleaseAt),
			IsCurrent:   item.IsCurrent,
			IsNext:      item.IsNext,
			IsPrevious:  item.IsPrevious,
			Finished:    item.Finished,
			DataChecked: item.DataChecked,
		}
		query, args, err := qb.InsertModel("gameweeks", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    name = EXCLUDED.name,
    deadline_at = EXCLUDED.deadline_at,
    release_at = EXCLUDED.release_at,
    is_current = EXCLUDED.is_current,
    is_next = EXCLUDED.is_next,
    is_previous = EXCLUDED.is_previous,
    finished = EXCLUDED.finished,
    data_checked = EXCLUDED.data_checked,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert gameweek query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert gameweek %d: %w", item.ID, err)
		}
	}
	return nil
}

func (r *GameweekRepository) GetCurrent(ctx context.Context) (gameweek.Gameweek, bool, error) {
	return r.getByFlag(ctx, "is_current")
}

func (r *GameweekRepository) GetNext(ctx context.Context) (gameweek.Gameweek, bool, error) {
	return r.getByFlag(ctx, "is_next")
}

func (r *GameweekRepository) getByFlag(ctx context.Context, flag string) (gameweek.Gameweek, bool, error) {
	query, args, err := qb.Select(gameweekColumns...).From("gameweeks").
		Where(qb.Eq(flag, true)).
		OrderBy("id").
		Limit(1).
		ToSQL()
	if err != nil {
		return gameweek.Gameweek{}, false, fmt.Errorf("build select gameweek by %s query: %w", flag, err)
	}

	var row gameweekTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return gameweek.Gameweek{}, false, nil
		}
		return gameweek.Gameweek{}, false, fmt.Errorf("select gameweek by %s: %w", flag, err)
	}
	return gameweekFromRow(row), true, nil
}

func (r *GameweekRepository) GetByID(ctx context.Context, id int) (gameweek.Gameweek, bool, error) {
	query, args, err := qb.Select(gameweekColumns...).From("gameweeks").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return gameweek.Gameweek{}, false, fmt.Errorf("build select gameweek query: %w", err)
	}

	var row gameweekTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return gameweek.Gameweek{}, false, nil
		}
		return gameweek.Gameweek{}, false, fmt.Errorf("select gameweek %d: %w", id, err)
	}
	return gameweekFromRow(row), true, nil
}

func (r *GameweekRepository) SetRanksFinalized(ctx context.Context, id int, finalized bool) error {
	query, args, err := qb.Update("gameweeks").
		Set("ranks_finalized", finalized).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update ranks finalized query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set ranks finalized gameweek=%d: %w", id, err)
	}
	return nil
}

var gameweekColumns = []string{
	"id", "name", "deadline_at", "release_at",
	"is_current", "is_next", "is_previous",
	"finished", "data_checked", "ranks_finalized",
}

func gameweekFromRow(row gameweekTableModel) gameweek.Gameweek {
	return gameweek.Gameweek{
		ID:             row.ID,
		Name:           row.Name,
		DeadlineAt:     row.DeadlineAt.UTC(),
		ReleaseAt:      nullTimeToTimePtr(row.ReleaseAt),
		IsCurrent:      row.IsCurrent,
		IsNext:         row.IsNext,
		IsPrevious:     row.IsPrevious,
		Finished:       row.Finished,
		DataChecked:    row.DataChecked,
		RanksFinalized: row.RanksFinalized,
	}
}
