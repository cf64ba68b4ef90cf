package fixture

import (
	"context"
	"time"
)

type Repository interface {
	UpsertMany(ctx context.Context, items []Fixture) error
	ListByGameweek(ctx context.Context, gameweekID int) ([]Fixture, error)
	// UpdateScore writes the live scoreboard for one fixture. Minutes never
	// decrease; scores are written only when both sides are present.
	UpdateScore(ctx context.Context, fixtureID int, homeScore, awayScore *int, minutes int) error
	FirstKickoff(ctx context.Context, gameweekID int) (*time.Time, error)
	NextKickoffAfter(ctx context.Context, after time.Time) (*time.Time, error)
}
