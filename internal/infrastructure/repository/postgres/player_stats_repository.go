package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type PlayerStatsRepository struct {
	db *sqlx.DB
}

var _ playerstats.Repository = (*PlayerStatsRepository)(nil)

func NewPlayerStatsRepository(db *sqlx.DB) *PlayerStatsRepository {
	return &PlayerStatsRepository{db: db}
}

// liveUpsertSuffix is the in-play update list. The event-live payload omits
// expected and ICT values, so zeros keep the stored value via NULLIF;
// a confirmed bonus row keeps its bonus and status no matter what the
// incoming row says.
const liveUpsertSuffix = `ON CONFLICT (player_id, gameweek_id, fixture_id)
DO UPDATE SET
    team_id = EXCLUDED.team_id,
    opponent_team_id = EXCLUDED.opponent_team_id,
    was_home = EXCLUDED.was_home,
    minutes = EXCLUDED.minutes,
    total_points = EXCLUDED.total_points,
    bps = EXCLUDED.bps,
    bonus = CASE WHEN player_stats.bonus_status = 'confirmed' THEN player_stats.bonus ELSE EXCLUDED.bonus END,
    bonus_status = CASE WHEN player_stats.bonus_status = 'confirmed' THEN 'confirmed' ELSE EXCLUDED.bonus_status END,
    goals = EXCLUDED.goals,
    assists = EXCLUDED.assists,
    clean_sheets = EXCLUDED.clean_sheets,
    saves = EXCLUDED.saves,
    defensive_contribution = EXCLUDED.defensive_contribution,
    yellow_cards = EXCLUDED.yellow_cards,
    red_cards = EXCLUDED.red_cards,
    expected_goals = COALESCE(NULLIF(EXCLUDED.expected_goals, 0), player_stats.expected_goals),
    expected_assists = COALESCE(NULLIF(EXCLUDED.expected_assists, 0), player_stats.expected_assists),
    expected_goal_involvements = COALESCE(NULLIF(EXCLUDED.expected_goal_involvements, 0), player_stats.expected_goal_involvements),
    expected_goals_conceded = COALESCE(NULLIF(EXCLUDED.expected_goals_conceded, 0), player_stats.expected_goals_conceded),
    influence = COALESCE(NULLIF(EXCLUDED.influence, 0), player_stats.influence),
    creativity = COALESCE(NULLIF(EXCLUDED.creativity, 0), player_stats.creativity),
    threat = COALESCE(NULLIF(EXCLUDED.threat, 0), player_stats.threat),
    ict_index = COALESCE(NULLIF(EXCLUDED.ict_index, 0), player_stats.ict_index),
    match_finished = EXCLUDED.match_finished,
    match_finished_provisional = EXCLUDED.match_finished_provisional,
    updated_at = NOW()`

const finalUpsertSuffix = `ON CONFLICT (player_id, gameweek_id, fixture_id)
DO UPDATE SET
    team_id = EXCLUDED.team_id,
    opponent_team_id = EXCLUDED.opponent_team_id,
    was_home = EXCLUDED.was_home,
    minutes = EXCLUDED.minutes,
    total_points = EXCLUDED.total_points,
    bps = EXCLUDED.bps,
    bonus = EXCLUDED.bonus,
    bonus_status = EXCLUDED.bonus_status,
    goals = EXCLUDED.goals,
    assists = EXCLUDED.assists,
    clean_sheets = EXCLUDED.clean_sheets,
    saves = EXCLUDED.saves,
    defensive_contribution = EXCLUDED.defensive_contribution,
    yellow_cards = EXCLUDED.yellow_cards,
    red_cards = EXCLUDED.red_cards,
    expected_goals = EXCLUDED.expected_goals,
    expected_assists = EXCLUDED.expected_assists,
    expected_goal_involvements = EXCLUDED.expected_goal_involvements,
    expected_goals_conceded = EXCLUDED.expected_goals_conceded,
    influence = EXCLUDED.influence,
    creativity = EXCLUDED.creativity,
    threat = EXCLUDED.threat,
    ict_index = EXCLUDED.ict_index,
    match_finished = EXCLUDED.match_finished,
    match_finished_provisional = EXCLUDED.match_finished_provisional,
    updated_at = NOW()`

func (r *PlayerStatsRepository) UpsertLive(ctx context.Context, items []playerstats.Stats) error {
	return r.upsert(ctx, items, liveUpsertSuffix)
}

func (r *PlayerStatsRepository) UpsertFinal(ctx context.Context, items []playerstats.Stats) error {
	return r.upsert(ctx, items, finalUpsertSuffix)
}

func (r *PlayerStatsRepository) upsert(ctx context.Context, items []playerstats.Stats, suffix string) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert player stats: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		query, args, err := qb.InsertModel("player_stats", playerStatsInsertRow(item), suffix)
		if err != nil {
			return fmt.Errorf("build upsert player stats query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player stats player=%d fixture=%d: %w", item.PlayerID, item.FixtureID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert player stats tx: %w", err)
	}
	return nil
}

func (r *PlayerStatsRepository) ListByGameweek(ctx context.Context, gameweekID int) ([]playerstats.Stats, error) {
	query, args, err := qb.Select("*").From("player_stats").
		Where(qb.Eq("gameweek_id", gameweekID)).
		OrderBy("player_id", "fixture_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player stats query: %w", err)
	}

	var rows []playerStatsTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select player stats gw=%d: %w", gameweekID, err)
	}

	out := make([]playerstats.Stats, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerStatsFromRow(row))
	}
	return out, nil
}

func (r *PlayerStatsRepository) ListPlayerIDsWithRows(ctx context.Context, gameweekID int) ([]int, error) {
	return r.listPlayerIDs(ctx, gameweekID, nil)
}

func (r *PlayerStatsRepository) ListProvisionalPlayerIDs(ctx context.Context, gameweekID int) ([]int, error) {
	return r.listPlayerIDs(ctx, gameweekID, []qb.Condition{qb.Eq("bonus_status", playerstats.BonusProvisional)})
}

func (r *PlayerStatsRepository) listPlayerIDs(ctx context.Context, gameweekID int, extra []qb.Condition) ([]int, error) {
	conditions := append([]qb.Condition{qb.Eq("gameweek_id", gameweekID)}, extra...)
	query, args, err := qb.Select("DISTINCT player_id").From("player_stats").
		Where(conditions...).
		OrderBy("player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player ids query: %w", err)
	}

	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("select player ids gw=%d: %w", gameweekID, err)
	}
	return ids, nil
}
