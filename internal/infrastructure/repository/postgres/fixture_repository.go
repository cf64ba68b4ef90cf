package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type FixtureRepository struct {
	db *sqlx.DB
}

var _ fixture.Repository = (*FixtureRepository)(nil)

func NewFixtureRepository(db *sqlx.DB) *FixtureRepository {
	return &FixtureRepository{db: db}
}

func (r *FixtureRepository) UpsertMany(ctx context.Context, items []fixture.Fixture) error {
	for _, item := range items {
		insertModel := fixtureInsertModel{
			ID:                  item.ID,
			GameweekID:          item.GameweekID,
			HomeTeamID:          item.HomeTeamID,
			AwayTeamID:          item.AwayTeamID,
			KickoffAt:           timePtrToNullTime(item.KickoffAt),
			Started:             item.Started,
			FinishedProvisional: item.FinishedProvisional,
			Finished:            item.Finished,
			Minutes:             item.Minutes,
			HomeScore:           intPtrToNullInt64(item.HomeScore),
			AwayScore:           intPtrToNullInt64(item.AwayScore),
		}
		query, args, err := qb.InsertModel("fixtures", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    gameweek_id = EXCLUDED.gameweek_id,
    home_team_id = EXCLUDED.home_team_id,
    away_team_id = EXCLUDED.away_team_id,
    kickoff_at = EXCLUDED.kickoff_at,
    started = EXCLUDED.started,
    finished_provisional = EXCLUDED.finished_provisional,
    finished = EXCLUDED.finished,
    minutes = GREATEST(fixtures.minutes, EXCLUDED.minutes),
    home_score = COALESCE(EXCLUDED.home_score, fixtures.home_score),
    away_score = COALESCE(EXCLUDED.away_score, fixtures.away_score),
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert fixture query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert fixture %d: %w", item.ID, err)
		}
	}
	return nil
}

func (r *FixtureRepository) ListByGameweek(ctx context.Context, gameweekID int) ([]fixture.Fixture, error) {
	query, args, err := qb.Select(fixtureColumns...).From("fixtures").
		Where(qb.Eq("gameweek_id", gameweekID)).
		OrderBy("kickoff_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select fixtures query: %w", err)
	}

	var rows []fixtureTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select fixtures gw=%d: %w", gameweekID, err)
	}

	out := make([]fixture.Fixture, 0, len(rows))
	for _, row := range rows {
		out = append(out, fixtureFromRow(row))
	}
	return out, nil
}

// UpdateScore writes the live scoreboard. Minutes never move backwards, and a
// half-known score (one side nil) leaves the stored score untouched.
func (r *FixtureRepository) UpdateScore(ctx context.Context, fixtureID int, homeScore, awayScore *int, minutes int) error {
	builder := qb.Update("fixtures").
		SetExpr("minutes", "GREATEST(minutes, ?)", minutes).
		SetExpr("updated_at", "NOW()")
	if homeScore != nil && awayScore != nil {
		builder = builder.
			Set("home_score", *homeScore).
			Set("away_score", *awayScore)
	}

	query, args, err := builder.Where(qb.Eq("id", fixtureID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update fixture score query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update fixture score %d: %w", fixtureID, err)
	}
	return nil
}

func (r *FixtureRepository) FirstKickoff(ctx context.Context, gameweekID int) (*time.Time, error) {
	query, args, err := qb.Select("MIN(kickoff_at) AS kickoff_at").From("fixtures").
		Where(qb.Eq("gameweek_id", gameweekID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build first kickoff query: %w", err)
	}

	var kickoff sql.NullTime
	if err := r.db.GetContext(ctx, &kickoff, query, args...); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select first kickoff gw=%d: %w", gameweekID, err)
	}
	return nullTimeToTimePtr(kickoff), nil
}

func (r *FixtureRepository) NextKickoffAfter(ctx context.Context, after time.Time) (*time.Time, error) {
	query, args, err := qb.Select("MIN(kickoff_at) AS kickoff_at").From("fixtures").
		Where(qb.Expr("kickoff_at > ?", after.UTC())).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build next kickoff query: %w", err)
	}

	var kickoff sql.NullTime
	if err := r.db.GetContext(ctx, &kickoff, query, args...); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select next kickoff: %w", err)
	}
	return nullTimeToTimePtr(kickoff), nil
}

var fixtureColumns = []string{
	"id", "gameweek_id", "home_team_id", "away_team_id", "kickoff_at",
	"started", "finished_provisional", "finished", "minutes",
	"home_score", "away_score",
}

func fixtureFromRow(row fixtureTableModel) fixture.Fixture {
	return fixture.Fixture{
		ID:                  row.ID,
		GameweekID:          row.GameweekID,
		HomeTeamID:          row.HomeTeamID,
		AwayTeamID:          row.AwayTeamID,
		KickoffAt:           nullTimeToTimePtr(row.KickoffAt),
		Started:             row.Started,
		FinishedProvisional: row.FinishedProvisional,
		Finished:            row.Finished,
		Minutes:             row.Minutes,
		HomeScore:           nullInt64ToIntPtr(row.HomeScore),
		AwayScore:           nullInt64ToIntPtr(row.AwayScore),
	}
}
