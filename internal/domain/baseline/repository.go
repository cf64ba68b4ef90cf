package baseline

import "context"

type Repository interface {
	UpsertMany(ctx context.Context, items []MatchdayBaseline) error
	Exists(ctx context.Context, gameweekID, sequence int) (bool, error)
}
