package minileague

import "context"

type Repository interface {
	UpsertLeague(ctx context.Context, item League) error
	UpsertMembers(ctx context.Context, items []Member) error
	ListLeagues(ctx context.Context) ([]League, error)
	ListMemberIDs(ctx context.Context, leagueID int) ([]int, error)
	// ListTrackedManagerIDs returns the union of all league members.
	ListTrackedManagerIDs(ctx context.Context) ([]int, error)
	// ReplacePlayerWhitelist stores the set of players owned by at least one
	// member for the gameweek, so readers can filter to "owned" players.
	ReplacePlayerWhitelist(ctx context.Context, leagueID, gameweekID int, playerIDs []int) error
}
