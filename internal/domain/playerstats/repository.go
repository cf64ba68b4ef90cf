package playerstats

import "context"

type Repository interface {
	// UpsertLive writes in-progress rows. Expected/ICT columns keep their
	// stored value when the incoming one is zero, and a confirmed bonus is
	// never demoted back to provisional.
	UpsertLive(ctx context.Context, items []Stats) error
	// UpsertFinal overwrites rows with authoritative post-match data.
	UpsertFinal(ctx context.Context, items []Stats) error
	ListByGameweek(ctx context.Context, gameweekID int) ([]Stats, error)
	ListPlayerIDsWithRows(ctx context.Context, gameweekID int) ([]int, error)
	ListProvisionalPlayerIDs(ctx context.Context, gameweekID int) ([]int, error)
}
