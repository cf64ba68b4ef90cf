package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
)

type managerInsertModel struct {
	ID        int    `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	TeamName  string `db:"team_name"`
}

type managerPickTableModel struct {
	ManagerID               int           `db:"manager_id"`
	GameweekID              int           `db:"gameweek_id"`
	Position                int           `db:"position"`
	PlayerID                int           `db:"player_id"`
	IsCaptain               bool          `db:"is_captain"`
	IsVice                  bool          `db:"is_vice"`
	Multiplier              int           `db:"multiplier"`
	WasAutoSubbedIn         bool          `db:"was_auto_subbed_in"`
	WasAutoSubbedOut        bool          `db:"was_auto_subbed_out"`
	AutoSubReplacedPlayerID sql.NullInt64 `db:"auto_sub_replaced_player_id"`
}

type managerTransferInsertModel struct {
	ManagerID            int       `db:"manager_id"`
	GameweekID           int       `db:"gameweek_id"`
	PlayerInID           int       `db:"player_in_id"`
	PlayerOutID          int       `db:"player_out_id"`
	PriceInTenths        int       `db:"price_in_tenths"`
	PriceOutTenths       int       `db:"price_out_tenths"`
	NetPriceChangeTenths int       `db:"net_price_change_tenths"`
	TransferAt           time.Time `db:"transfer_at"`
}

type managerHistoryTableModel struct {
	ManagerID              int           `db:"manager_id"`
	GameweekID             int           `db:"gameweek_id"`
	GameweekPoints         int           `db:"gameweek_points"`
	TransferCost           int           `db:"transfer_cost"`
	TotalPoints            int           `db:"total_points"`
	OverallRank            sql.NullInt64 `db:"overall_rank"`
	PreviousOverallRank    sql.NullInt64 `db:"previous_overall_rank"`
	OverallRankChange      sql.NullInt64 `db:"overall_rank_change"`
	GameweekRank           sql.NullInt64 `db:"gameweek_rank"`
	MiniLeagueRank         sql.NullInt64 `db:"mini_league_rank"`
	PreviousMiniLeagueRank sql.NullInt64 `db:"previous_mini_league_rank"`
	MiniLeagueRankChange   sql.NullInt64 `db:"mini_league_rank_change"`
	TeamValueTenths        int           `db:"team_value_tenths"`
	BankTenths             int           `db:"bank_tenths"`
	ActiveChip             string        `db:"active_chip"`
	TransfersMade          int           `db:"transfers_made"`
	BaselineTotalPoints    sql.NullInt64 `db:"baseline_total_points"`
}

func managerHistoryInsertRow(item manager.History) managerHistoryTableModel {
	return managerHistoryTableModel{
		ManagerID:              item.ManagerID,
		GameweekID:             item.GameweekID,
		GameweekPoints:         item.GameweekPoints,
		TransferCost:           item.TransferCost,
		TotalPoints:            item.TotalPoints,
		OverallRank:            intPtrToNullInt64(item.OverallRank),
		PreviousOverallRank:    intPtrToNullInt64(item.PreviousOverallRank),
		OverallRankChange:      intPtrToNullInt64(item.OverallRankChange),
		GameweekRank:           intPtrToNullInt64(item.GameweekRank),
		MiniLeagueRank:         intPtrToNullInt64(item.MiniLeagueRank),
		PreviousMiniLeagueRank: intPtrToNullInt64(item.PreviousMiniLeagueRank),
		MiniLeagueRankChange:   intPtrToNullInt64(item.MiniLeagueRankChange),
		TeamValueTenths:        item.TeamValueTenths,
		BankTenths:             item.BankTenths,
		ActiveChip:             item.ActiveChip,
		TransfersMade:          item.TransfersMade,
		BaselineTotalPoints:    intPtrToNullInt64(item.BaselineTotalPoints),
	}
}

func managerHistoryFromRow(row managerHistoryTableModel) manager.History {
	return manager.History{
		ManagerID:              row.ManagerID,
		GameweekID:             row.GameweekID,
		GameweekPoints:         row.GameweekPoints,
		TransferCost:           row.TransferCost,
		TotalPoints:            row.TotalPoints,
		OverallRank:            nullInt64ToIntPtr(row.OverallRank),
		PreviousOverallRank:    nullInt64ToIntPtr(row.PreviousOverallRank),
		OverallRankChange:      nullInt64ToIntPtr(row.OverallRankChange),
		GameweekRank:           nullInt64ToIntPtr(row.GameweekRank),
		MiniLeagueRank:         nullInt64ToIntPtr(row.MiniLeagueRank),
		PreviousMiniLeagueRank: nullInt64ToIntPtr(row.PreviousMiniLeagueRank),
		MiniLeagueRankChange:   nullInt64ToIntPtr(row.MiniLeagueRankChange),
		TeamValueTenths:        row.TeamValueTenths,
		BankTenths:             row.BankTenths,
		ActiveChip:             row.ActiveChip,
		TransfersMade:          row.TransfersMade,
		BaselineTotalPoints:    nullInt64ToIntPtr(row.BaselineTotalPoints),
	}
}

func managerPickFromRow(row managerPickTableModel) manager.Pick {
	return manager.Pick{
		ManagerID:               row.ManagerID,
		GameweekID:              row.GameweekID,
		Position:                row.Position,
		PlayerID:                row.PlayerID,
		IsCaptain:               row.IsCaptain,
		IsVice:                  row.IsVice,
		Multiplier:              row.Multiplier,
		WasAutoSubbedIn:         row.WasAutoSubbedIn,
		WasAutoSubbedOut:        row.WasAutoSubbedOut,
		AutoSubReplacedPlayerID: nullInt64ToIntPtr(row.AutoSubReplacedPlayerID),
	}
}
