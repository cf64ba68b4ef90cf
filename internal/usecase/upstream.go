package usecase

import (
	"context"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
)

// UpstreamClient is the slice of the FPL API the services consume. The
// concrete client enforces rate limiting, retries and the bootstrap cache;
// services stay oblivious to all of that.
type UpstreamClient interface {
	Bootstrap(ctx context.Context) (fplapi.Bootstrap, error)
	RefreshBootstrap(ctx context.Context) (fplapi.Bootstrap, error)
	Fixtures(ctx context.Context) ([]fplapi.Fixture, error)
	EventLive(ctx context.Context, gameweek int) (fplapi.EventLive, error)
	ElementSummary(ctx context.Context, playerID int) (fplapi.ElementSummary, error)
	Entry(ctx context.Context, managerID int) (fplapi.Entry, error)
	EntryHistory(ctx context.Context, managerID int) (fplapi.EntryHistory, error)
	EntryPicks(ctx context.Context, managerID, gameweek int) (fplapi.EntryPicks, error)
	EntryTransfers(ctx context.Context, managerID int) ([]fplapi.Transfer, error)
	LeagueStandings(ctx context.Context, leagueID, page int) (fplapi.LeagueStandings, error)
}
