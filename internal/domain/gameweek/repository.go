package gameweek

import "context"

type Repository interface {
	UpsertMany(ctx context.Context, items []Gameweek) error
	GetCurrent(ctx context.Context) (Gameweek, bool, error)
	GetNext(ctx context.Context) (Gameweek, bool, error)
	GetByID(ctx context.Context, id int) (Gameweek, bool, error)
	SetRanksFinalized(ctx context.Context, id int, finalized bool) error
}
