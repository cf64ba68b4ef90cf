package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/minileague"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type miniLeagueTableModel struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

type MiniLeagueRepository struct {
	db *sqlx.DB
}

var _ minileague.Repository = (*MiniLeagueRepository)(nil)

func NewMiniLeagueRepository(db *sqlx.DB) *MiniLeagueRepository {
	return &MiniLeagueRepository{db: db}
}

func (r *MiniLeagueRepository) UpsertLeague(ctx context.Context, item minileague.League) error {
	insertModel := miniLeagueTableModel{ID: item.ID, Name: item.Name}
	query, args, err := qb.InsertModel("mini_leagues", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    name = EXCLUDED.name,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert mini league query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert mini league %d: %w", item.ID, err)
	}
	return nil
}

func (r *MiniLeagueRepository) UpsertMembers(ctx context.Context, items []minileague.Member) error {
	for _, item := range items {
		query, args, err := qb.InsertInto("mini_league_members").
			Columns("league_id", "manager_id").
			Values(item.LeagueID, item.ManagerID).
			Suffix("ON CONFLICT (league_id, manager_id) DO NOTHING").
			ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert league member query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert league member league=%d manager=%d: %w", item.LeagueID, item.ManagerID, err)
		}
	}
	return nil
}

func (r *MiniLeagueRepository) ListLeagues(ctx context.Context) ([]minileague.League, error) {
	query, args, err := qb.Select("id", "name").From("mini_leagues").
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list mini leagues query: %w", err)
	}

	var rows []miniLeagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list mini leagues: %w", err)
	}

	out := make([]minileague.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, minileague.League{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *MiniLeagueRepository) ListMemberIDs(ctx context.Context, leagueID int) ([]int, error) {
	query, args, err := qb.Select("manager_id").From("mini_league_members").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("manager_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list league members query: %w", err)
	}

	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list league members league=%d: %w", leagueID, err)
	}
	return ids, nil
}

func (r *MiniLeagueRepository) ListTrackedManagerIDs(ctx context.Context) ([]int, error) {
	query, args, err := qb.Select("DISTINCT manager_id").From("mini_league_members").
		OrderBy("manager_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tracked managers query: %w", err)
	}

	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list tracked managers: %w", err)
	}
	return ids, nil
}

func (r *MiniLeagueRepository) ReplacePlayerWhitelist(ctx context.Context, leagueID, gameweekID int, playerIDs []int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace whitelist: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	clearQuery := "DELETE FROM league_player_whitelist WHERE league_id = $1 AND gameweek_id = $2"
	if _, err := tx.ExecContext(ctx, clearQuery, leagueID, gameweekID); err != nil {
		return fmt.Errorf("clear whitelist league=%d gw=%d: %w", leagueID, gameweekID, err)
	}

	for _, playerID := range playerIDs {
		query, args, err := qb.InsertInto("league_player_whitelist").
			Columns("league_id", "gameweek_id", "player_id").
			Values(leagueID, gameweekID, playerID).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert whitelist query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert whitelist league=%d gw=%d player=%d: %w", leagueID, gameweekID, playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace whitelist tx: %w", err)
	}
	return nil
}
