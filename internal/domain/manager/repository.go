package manager

import "context"

type Repository interface {
	Upsert(ctx context.Context, item Manager) error

	ReplacePicks(ctx context.Context, managerID, gameweekID int, picks []Pick) error
	GetPicks(ctx context.Context, managerID, gameweekID int) ([]Pick, error)

	UpsertTransfers(ctx context.Context, items []Transfer) error
	CountTransfers(ctx context.Context, managerID, gameweekID int) (int, error)

	// UpsertHistory writes a history row, preserving existing baseline_* and
	// previous_* columns when the incoming values are nil.
	UpsertHistory(ctx context.Context, item History) error
	GetHistory(ctx context.Context, managerID, gameweekID int) (History, bool, error)
	ListHistoryByGameweek(ctx context.Context, gameweekID int, managerIDs []int) ([]History, error)

	// UpdateLivePoints touches only gameweek_points and total_points.
	UpdateLivePoints(ctx context.Context, managerID, gameweekID, gameweekPoints, totalPoints int) error

	// SetBaseline writes baseline_total_points and the previous_* ranks once;
	// a row whose baseline is already set is left untouched.
	SetBaseline(ctx context.Context, managerID, gameweekID, baselineTotalPoints int, previousOverallRank, previousMiniLeagueRank *int) error

	UpdateMiniLeagueRank(ctx context.Context, managerID, gameweekID, rank int, change *int) error
}
