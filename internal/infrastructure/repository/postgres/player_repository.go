package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/player"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type PlayerRepository struct {
	db *sqlx.DB
}

var _ player.Repository = (*PlayerRepository)(nil)

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) UpsertMany(ctx context.Context, items []player.Player) error {
	for _, item := range items {
		insertModel := playerInsertModel{
			ID:                item.ID,
			TeamID:            item.TeamID,
			Position:          item.Position,
			WebName:           item.WebName,
			CostTenths:        item.CostTenths,
			SelectedByPercent: item.SelectedByPercent,
		}
		query, args, err := qb.InsertModel("players", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    team_id = EXCLUDED.team_id,
    position = EXCLUDED.position,
    web_name = EXCLUDED.web_name,
    cost_tenths = EXCLUDED.cost_tenths,
    selected_by_percent = EXCLUDED.selected_by_percent,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert player query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player %d: %w", item.ID, err)
		}
	}
	return nil
}

// ListPositions maps player id to position code. A nil or empty playerIDs
// returns every player.
func (r *PlayerRepository) ListPositions(ctx context.Context, playerIDs []int) (map[int]string, error) {
	builder := qb.Select("id", "position").From("players")
	if len(playerIDs) > 0 {
		values := make([]any, 0, len(playerIDs))
		for _, id := range playerIDs {
			values = append(values, id)
		}
		builder = builder.Where(qb.In("id", values))
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player positions query: %w", err)
	}

	var rows []playerPositionRowModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select player positions: %w", err)
	}

	out := make(map[int]string, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Position
	}
	return out, nil
}

func (r *PlayerRepository) UpsertPrices(ctx context.Context, items []player.Price) error {
	for _, item := range items {
		insertModel := playerPriceInsertModel{
			PlayerID:   item.PlayerID,
			GameweekID: item.GameweekID,
			CostTenths: item.CostTenths,
			RecordedAt: item.RecordedAt.UTC(),
		}
		query, args, err := qb.InsertModel("player_prices", insertModel, `ON CONFLICT (player_id, gameweek_id)
DO UPDATE SET
    cost_tenths = EXCLUDED.cost_tenths,
    recorded_at = EXCLUDED.recorded_at`)
		if err != nil {
			return fmt.Errorf("build upsert player price query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player price player=%d gw=%d: %w", item.PlayerID, item.GameweekID, err)
		}
	}
	return nil
}
