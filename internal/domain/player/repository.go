package player

import "context"

type Repository interface {
	UpsertMany(ctx context.Context, items []Player) error
	ListPositions(ctx context.Context, playerIDs []int) (map[int]string, error)
	UpsertPrices(ctx context.Context, items []Price) error
}
