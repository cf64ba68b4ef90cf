package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type ManagerRepository struct {
	db *sqlx.DB
}

var _ manager.Repository = (*ManagerRepository)(nil)

func NewManagerRepository(db *sqlx.DB) *ManagerRepository {
	return &ManagerRepository{db: db}
}

func (r *ManagerRepository) Upsert(ctx context.Context, item manager.Manager) error {
	insertModel := managerInsertModel{
		ID:        item.ID,
		FirstName: item.FirstName,
		LastName:  item.LastName,
		TeamName:  item.TeamName,
	}
	query, args, err := qb.InsertModel("managers", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    team_name = EXCLUDED.team_name,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert manager query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert manager %d: %w", item.ID, err)
	}
	return nil
}

func (r *ManagerRepository) ReplacePicks(ctx context.Context, managerID, gameweekID int, picks []manager.Pick) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace picks: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	clearQuery := "DELETE FROM manager_picks WHERE manager_id = $1 AND gameweek_id = $2"
	if _, err := tx.ExecContext(ctx, clearQuery, managerID, gameweekID); err != nil {
		return fmt.Errorf("clear picks manager=%d gw=%d: %w", managerID, gameweekID, err)
	}

	for _, pick := range picks {
		insertModel := managerPickTableModel{
			ManagerID:               managerID,
			GameweekID:              gameweekID,
			Position:                pick.Position,
			PlayerID:                pick.PlayerID,
			IsCaptain:               pick.IsCaptain,
			IsVice:                  pick.IsVice,
			Multiplier:              pick.Multiplier,
			WasAutoSubbedIn:         pick.WasAutoSubbedIn,
			WasAutoSubbedOut:        pick.WasAutoSubbedOut,
			AutoSubReplacedPlayerID: intPtrToNullInt64(pick.AutoSubReplacedPlayerID),
		}
		query, args, err := qb.InsertModel("manager_picks", insertModel, "")
		if err != nil {
			return fmt.Errorf("build insert pick query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert pick manager=%d gw=%d pos=%d: %w", managerID, gameweekID, pick.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace picks tx: %w", err)
	}
	return nil
}

func (r *ManagerRepository) GetPicks(ctx context.Context, managerID, gameweekID int) ([]manager.Pick, error) {
	query, args, err := qb.Select("*").From("manager_picks").
		Where(
			qb.Eq("manager_id", managerID),
			qb.Eq("gameweek_id", gameweekID),
		).
		OrderBy("position").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select picks query: %w", err)
	}

	var rows []managerPickTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select picks manager=%d gw=%d: %w", managerID, gameweekID, err)
	}

	out := make([]manager.Pick, 0, len(rows))
	for _, row := range rows {
		out = append(out, managerPickFromRow(row))
	}
	return out, nil
}

func (r *ManagerRepository) UpsertTransfers(ctx context.Context, items []manager.Transfer) error {
	for _, item := range items {
		insertModel := managerTransferInsertModel{
			ManagerID:            item.ManagerID,
			GameweekID:           item.GameweekID,
			PlayerInID:           item.PlayerInID,
			PlayerOutID:          item.PlayerOutID,
			PriceInTenths:        item.PriceInTenths,
			PriceOutTenths:       item.PriceOutTenths,
			NetPriceChangeTenths: item.NetPriceChangeTenths,
			TransferAt:           item.TransferAt.UTC(),
		}
		// The upstream exposes no transfer id; the full tuple is the key.
		query, args, err := qb.InsertModel("manager_transfers", insertModel,
			"ON CONFLICT (manager_id, gameweek_id, player_in_id, player_out_id, transfer_at) DO UPDATE SET net_price_change_tenths = EXCLUDED.net_price_change_tenths")
		if err != nil {
			return fmt.Errorf("build upsert transfer query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert transfer manager=%d gw=%d in=%d out=%d: %w",
				item.ManagerID, item.GameweekID, item.PlayerInID, item.PlayerOutID, err)
		}
	}
	return nil
}

func (r *ManagerRepository) CountTransfers(ctx context.Context, managerID, gameweekID int) (int, error) {
	query, args, err := qb.Select("COUNT(*)").From("manager_transfers").
		Where(
			qb.Eq("manager_id", managerID),
			qb.Eq("gameweek_id", gameweekID),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count transfers query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count transfers manager=%d gw=%d: %w", managerID, gameweekID, err)
	}
	return count, nil
}

// UpsertHistory writes a history row. The deadline-time columns — the points
// baseline and the previous-gameweek ranks — stick once set: an incoming nil
// never clears them, and an incoming value never replaces a stored one.
func (r *ManagerRepository) UpsertHistory(ctx context.Context, item manager.History) error {
	query, args, err := qb.InsertModel("manager_history", managerHistoryInsertRow(item), `ON CONFLICT (manager_id, gameweek_id)
DO UPDATE SET
    gameweek_points = EXCLUDED.gameweek_points,
    transfer_cost = EXCLUDED.transfer_cost,
    total_points = EXCLUDED.total_points,
    overall_rank = EXCLUDED.overall_rank,
    previous_overall_rank = COALESCE(manager_history.previous_overall_rank, EXCLUDED.previous_overall_rank),
    overall_rank_change = EXCLUDED.overall_rank_change,
    gameweek_rank = EXCLUDED.gameweek_rank,
    mini_league_rank = EXCLUDED.mini_league_rank,
    previous_mini_league_rank = COALESCE(manager_history.previous_mini_league_rank, EXCLUDED.previous_mini_league_rank),
    mini_league_rank_change = EXCLUDED.mini_league_rank_change,
    team_value_tenths = EXCLUDED.team_value_tenths,
    bank_tenths = EXCLUDED.bank_tenths,
    active_chip = EXCLUDED.active_chip,
    transfers_made = EXCLUDED.transfers_made,
    baseline_total_points = COALESCE(manager_history.baseline_total_points, EXCLUDED.baseline_total_points),
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert history query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert history manager=%d gw=%d: %w", item.ManagerID, item.GameweekID, err)
	}
	return nil
}

func (r *ManagerRepository) GetHistory(ctx context.Context, managerID, gameweekID int) (manager.History, bool, error) {
	query, args, err := qb.Select("*").From("manager_history").
		Where(
			qb.Eq("manager_id", managerID),
			qb.Eq("gameweek_id", gameweekID),
		).
		ToSQL()
	if err != nil {
		return manager.History{}, false, fmt.Errorf("build select history query: %w", err)
	}

	var row managerHistoryTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return manager.History{}, false, nil
		}
		return manager.History{}, false, fmt.Errorf("select history manager=%d gw=%d: %w", managerID, gameweekID, err)
	}
	return managerHistoryFromRow(row), true, nil
}

func (r *ManagerRepository) ListHistoryByGameweek(ctx context.Context, gameweekID int, managerIDs []int) ([]manager.History, error) {
	conditions := []qb.Condition{qb.Eq("gameweek_id", gameweekID)}
	if len(managerIDs) > 0 {
		values := make([]any, 0, len(managerIDs))
		for _, id := range managerIDs {
			values = append(values, id)
		}
		conditions = append(conditions, qb.In("manager_id", values))
	}

	query, args, err := qb.Select("*").From("manager_history").
		Where(conditions...).
		OrderBy("manager_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list history query: %w", err)
	}

	var rows []managerHistoryTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list history gw=%d: %w", gameweekID, err)
	}

	out := make([]manager.History, 0, len(rows))
	for _, row := range rows {
		out = append(out, managerHistoryFromRow(row))
	}
	return out, nil
}

func (r *ManagerRepository) UpdateLivePoints(ctx context.Context, managerID, gameweekID, gameweekPoints, totalPoints int) error {
	query, args, err := qb.Update("manager_history").
		Set("gameweek_points", gameweekPoints).
		Set("total_points", totalPoints).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("manager_id", managerID),
			qb.Eq("gameweek_id", gameweekID),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update live points query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update live points manager=%d gw=%d: %w", managerID, gameweekID, err)
	}
	return nil
}

// SetBaseline anchors the gameweek: write-once by the IS NULL guard, so a
// rerun after a crash cannot move an already-captured baseline.
func (r *ManagerRepository) SetBaseline(ctx context.Context, managerID, gameweekID, baselineTotalPoints int, previousOverallRank, previousMiniLeagueRank *int) error {
	query, args, err := qb.Update("manager_history").
		Set("baseline_total_points", baselineTotalPoints).
		Set("previous_overall_rank", intPtrToNullInt64(previousOverallRank)).
		Set("previous_mini_league_rank", intPtrToNullInt64(previousMiniLeagueRank)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("manager_id", managerID),
			qb.Eq("gameweek_id", gameweekID),
			qb.IsNull("baseline_total_points"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build set baseline query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set baseline manager=%d gw=%d: %w", managerID, gameweekID, err)
	}
	return nil
}

func (r *ManagerRepository) UpdateMiniLeagueRank(ctx context.Context, managerID, gameweekID, rank int, change *int) error {
	query, args, err := qb.Update("manager_history").
		Set("mini_league_rank", rank).
		Set("mini_league_rank_change", intPtrToNullInt64(change)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("manager_id", managerID),
			qb.Eq("gameweek_id", gameweekID),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update mini league rank query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update mini league rank manager=%d gw=%d: %w", managerID, gameweekID, err)
	}
	return nil
}
