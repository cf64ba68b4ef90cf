package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/player"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	"github.com/riskibarqy/fpl-mirror/internal/domain/team"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

// fakeUpstream implements UpstreamClient with overridable funcs so each test
// wires only the endpoints it touches.
type fakeUpstream struct {
	bootstrapFn      func(ctx context.Context) (fplapi.Bootstrap, error)
	fixturesFn       func(ctx context.Context) ([]fplapi.Fixture, error)
	eventLiveFn      func(ctx context.Context, gameweek int) (fplapi.EventLive, error)
	elementSummaryFn func(ctx context.Context, playerID int) (fplapi.ElementSummary, error)
	entryFn          func(ctx context.Context, managerID int) (fplapi.Entry, error)
	entryHistoryFn   func(ctx context.Context, managerID int) (fplapi.EntryHistory, error)
	entryPicksFn     func(ctx context.Context, managerID, gameweek int) (fplapi.EntryPicks, error)
	entryTransfersFn func(ctx context.Context, managerID int) ([]fplapi.Transfer, error)
	standingsFn      func(ctx context.Context, leagueID, page int) (fplapi.LeagueStandings, error)
}

var _ UpstreamClient = (*fakeUpstream)(nil)

func (f *fakeUpstream) Bootstrap(ctx context.Context) (fplapi.Bootstrap, error) {
	if f.bootstrapFn == nil {
		return fplapi.Bootstrap{}, nil
	}
	return f.bootstrapFn(ctx)
}

func (f *fakeUpstream) RefreshBootstrap(ctx context.Context) (fplapi.Bootstrap, error) {
	return f.Bootstrap(ctx)
}

func (f *fakeUpstream) Fixtures(ctx context.Context) ([]fplapi.Fixture, error) {
	if f.fixturesFn == nil {
		return nil, nil
	}
	return f.fixturesFn(ctx)
}

func (f *fakeUpstream) EventLive(ctx context.Context, gameweek int) (fplapi.EventLive, error) {
	if f.eventLiveFn == nil {
		return fplapi.EventLive{}, nil
	}
	return f.eventLiveFn(ctx, gameweek)
}

func (f *fakeUpstream) ElementSummary(ctx context.Context, playerID int) (fplapi.ElementSummary, error) {
	if f.elementSummaryFn == nil {
		return fplapi.ElementSummary{}, nil
	}
	return f.elementSummaryFn(ctx, playerID)
}

func (f *fakeUpstream) Entry(ctx context.Context, managerID int) (fplapi.Entry, error) {
	if f.entryFn == nil {
		return fplapi.Entry{}, nil
	}
	return f.entryFn(ctx, managerID)
}

func (f *fakeUpstream) EntryHistory(ctx context.Context, managerID int) (fplapi.EntryHistory, error) {
	if f.entryHistoryFn == nil {
		return fplapi.EntryHistory{}, nil
	}
	return f.entryHistoryFn(ctx, managerID)
}

func (f *fakeUpstream) EntryPicks(ctx context.Context, managerID, gameweek int) (fplapi.EntryPicks, error) {
	if f.entryPicksFn == nil {
		return fplapi.EntryPicks{}, nil
	}
	return f.entryPicksFn(ctx, managerID, gameweek)
}

func (f *fakeUpstream) EntryTransfers(ctx context.Context, managerID int) ([]fplapi.Transfer, error) {
	if f.entryTransfersFn == nil {
		return nil, nil
	}
	return f.entryTransfersFn(ctx, managerID)
}

func (f *fakeUpstream) LeagueStandings(ctx context.Context, leagueID, page int) (fplapi.LeagueStandings, error) {
	if f.standingsFn == nil {
		return fplapi.LeagueStandings{}, nil
	}
	return f.standingsFn(ctx, leagueID, page)
}

type stubStatsRepo struct {
	live        []playerstats.Stats
	final       []playerstats.Stats
	rows        []playerstats.Stats
	provisional []int
}

var _ playerstats.Repository = (*stubStatsRepo)(nil)

func (s *stubStatsRepo) UpsertLive(_ context.Context, items []playerstats.Stats) error {
	s.live = append(s.live, items...)
	return nil
}

func (s *stubStatsRepo) UpsertFinal(_ context.Context, items []playerstats.Stats) error {
	s.final = append(s.final, items...)
	return nil
}

func (s *stubStatsRepo) ListByGameweek(context.Context, int) ([]playerstats.Stats, error) {
	return s.rows, nil
}

func (s *stubStatsRepo) ListPlayerIDsWithRows(context.Context, int) ([]int, error) {
	ids := make(map[int]bool)
	var out []int
	for _, row := range s.rows {
		if !ids[row.PlayerID] {
			ids[row.PlayerID] = true
			out = append(out, row.PlayerID)
		}
	}
	return out, nil
}

func (s *stubStatsRepo) ListProvisionalPlayerIDs(context.Context, int) ([]int, error) {
	return s.provisional, nil
}

type stubPlayerRepo struct {
	players   []player.Player
	prices    []player.Price
	positions map[int]string
}

var _ player.Repository = (*stubPlayerRepo)(nil)

func (s *stubPlayerRepo) UpsertMany(_ context.Context, items []player.Player) error {
	s.players = items
	return nil
}

func (s *stubPlayerRepo) ListPositions(context.Context, []int) (map[int]string, error) {
	return s.positions, nil
}

func (s *stubPlayerRepo) UpsertPrices(_ context.Context, items []player.Price) error {
	s.prices = append(s.prices, items...)
	return nil
}

type stubTeamRepo struct {
	teams []team.Team
}

var _ team.Repository = (*stubTeamRepo)(nil)

func (s *stubTeamRepo) UpsertMany(_ context.Context, items []team.Team) error {
	s.teams = items
	return nil
}

type stubFixtureRepo struct {
	fixtures    []fixture.Fixture
	scoreCalls  int
	firstKick   *time.Time
	nextKickoff *time.Time
}

var _ fixture.Repository = (*stubFixtureRepo)(nil)

func (s *stubFixtureRepo) UpsertMany(_ context.Context, items []fixture.Fixture) error {
	s.fixtures = items
	return nil
}

func (s *stubFixtureRepo) ListByGameweek(context.Context, int) ([]fixture.Fixture, error) {
	return s.fixtures, nil
}

func (s *stubFixtureRepo) UpdateScore(context.Context, int, *int, *int, int) error {
	s.scoreCalls++
	return nil
}

func (s *stubFixtureRepo) FirstKickoff(context.Context, int) (*time.Time, error) {
	return s.firstKick, nil
}

func (s *stubFixtureRepo) NextKickoffAfter(context.Context, time.Time) (*time.Time, error) {
	return s.nextKickoff, nil
}

func newPlayerRefreshFixture(client UpstreamClient) (*PlayerRefreshService, *stubStatsRepo) {
	stats := &stubStatsRepo{}
	svc := NewPlayerRefreshService(client, &stubPlayerRepo{}, &stubTeamRepo{}, stats, &stubFixtureRepo{}, logging.NewNop())
	return svc, stats
}

func TestPlayerRefreshService_LivePathSplitsRowsByFixtureState(t *testing.T) {
	t.Parallel()

	live := fplapi.EventLive{Elements: []fplapi.LiveElement{
		{
			ID:    10,
			Stats: fplapi.LiveStats{Minutes: 45, TotalPoints: 2, BPS: 12, ExpectedGoals: "0.31"},
			Explain: []fplapi.LiveExplain{
				{Fixture: 100, Stats: []fplapi.LiveExplainEntry{{Identifier: "minutes", Points: 1, Value: 45}}},
			},
		},
		{
			ID:    11,
			Stats: fplapi.LiveStats{Minutes: 90, TotalPoints: 8, BPS: 30, Bonus: 2},
			Explain: []fplapi.LiveExplain{
				{Fixture: 101, Stats: []fplapi.LiveExplainEntry{{Identifier: "minutes", Points: 2, Value: 90}}},
			},
		},
	}}
	fixtures := []fplapi.Fixture{
		{ID: 100, TeamH: 1, TeamA: 2},
		{ID: 101, TeamH: 3, TeamA: 4, FinishedProvisional: true, Finished: true},
	}
	bootstrap := fplapi.Bootstrap{Elements: []fplapi.Element{
		{ID: 10, Team: 1}, {ID: 11, Team: 4},
	}}

	svc, stats := newPlayerRefreshFixture(&fakeUpstream{})
	err := svc.RefreshPlayerStats(context.Background(), RefreshPlayerStatsParams{
		Gameweek:  8,
		PlayerIDs: []int{10, 11},
		Live:      &live,
		Fixtures:  fixtures,
		Bootstrap: &bootstrap,
		LiveOnly:  true,
	})
	if err != nil {
		t.Fatalf("RefreshPlayerStats: %v", err)
	}

	if len(stats.live) != 1 || stats.live[0].PlayerID != 10 {
		t.Fatalf("in-progress row must go to the live upsert: %+v", stats.live)
	}
	if stats.live[0].BonusStatus != playerstats.BonusProvisional {
		t.Fatalf("in-progress row must stay provisional, got %q", stats.live[0].BonusStatus)
	}
	if stats.live[0].ExpectedGoals != 0.31 {
		t.Fatalf("expected goals: got=%v want=0.31", stats.live[0].ExpectedGoals)
	}
	if !stats.live[0].WasHome || stats.live[0].OpponentTeamID != 2 {
		t.Fatalf("home/opponent wrong: %+v", stats.live[0])
	}

	if len(stats.final) != 1 || stats.final[0].PlayerID != 11 {
		t.Fatalf("finished row must go to the final upsert: %+v", stats.final)
	}
	if stats.final[0].BonusStatus != playerstats.BonusConfirmed {
		t.Fatalf("finished row must be confirmed, got %q", stats.final[0].BonusStatus)
	}
}

func TestPlayerRefreshService_DoubleGameweekWritesOneRowPerFixture(t *testing.T) {
	t.Parallel()

	live := fplapi.EventLive{Elements: []fplapi.LiveElement{{
		ID:    7,
		Stats: fplapi.LiveStats{Minutes: 180, TotalPoints: 15, BPS: 55},
		Explain: []fplapi.LiveExplain{
			{Fixture: 201, Stats: []fplapi.LiveExplainEntry{
				{Identifier: "minutes", Points: 2, Value: 90},
				{Identifier: "goals_scored", Points: 4, Value: 1},
			}},
			{Fixture: 200, Stats: []fplapi.LiveExplainEntry{
				{Identifier: "minutes", Points: 2, Value: 90},
				{Identifier: "goals_scored", Points: 8, Value: 2},
			}},
		},
	}}}
	fixtures := []fplapi.Fixture{
		{ID: 200, TeamH: 1, TeamA: 2, FinishedProvisional: true, Finished: true},
		{ID: 201, TeamH: 2, TeamA: 1, FinishedProvisional: true, Finished: true},
	}
	bootstrap := fplapi.Bootstrap{Elements: []fplapi.Element{{ID: 7, Team: 1}}}

	svc, stats := newPlayerRefreshFixture(&fakeUpstream{})
	err := svc.RefreshPlayerStats(context.Background(), RefreshPlayerStatsParams{
		Gameweek:  12,
		PlayerIDs: []int{7},
		Live:      &live,
		Fixtures:  fixtures,
		Bootstrap: &bootstrap,
	})
	if err != nil {
		t.Fatalf("RefreshPlayerStats: %v", err)
	}

	if len(stats.final) != 2 {
		t.Fatalf("expected one row per fixture, got %d", len(stats.final))
	}
	// Explain entries are sorted by fixture id.
	if stats.final[0].FixtureID != 200 || stats.final[0].Goals != 2 || stats.final[0].TotalPoints != 10 {
		t.Fatalf("fixture 200 row wrong: %+v", stats.final[0])
	}
	if stats.final[1].FixtureID != 201 || stats.final[1].Goals != 1 || stats.final[1].TotalPoints != 6 {
		t.Fatalf("fixture 201 row wrong: %+v", stats.final[1])
	}
	if stats.final[0].TotalPoints+stats.final[1].TotalPoints != 16 {
		t.Fatalf("per-fixture totals must partition the gameweek, got %d and %d",
			stats.final[0].TotalPoints, stats.final[1].TotalPoints)
	}
}

func TestPlayerRefreshService_FallbackUsesElementSummary(t *testing.T) {
	t.Parallel()

	calls := 0
	client := &fakeUpstream{
		elementSummaryFn: func(_ context.Context, playerID int) (fplapi.ElementSummary, error) {
			calls++
			return fplapi.ElementSummary{History: []fplapi.ElementHistoryItem{
				{Element: playerID, Fixture: 300, Round: 5, Minutes: 90, TotalPoints: 6, Bonus: 1, ICTIndex: "7.4"},
				{Element: playerID, Fixture: 250, Round: 4, Minutes: 90, TotalPoints: 2},
			}}, nil
		},
	}

	svc, stats := newPlayerRefreshFixture(client)
	err := svc.RefreshPlayerStats(context.Background(), RefreshPlayerStatsParams{
		Gameweek:  5,
		PlayerIDs: []int{42},
		Fixtures:  []fplapi.Fixture{{ID: 300, FinishedProvisional: true, Finished: true}},
	})
	if err != nil {
		t.Fatalf("RefreshPlayerStats: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected one element-summary fetch, got %d", calls)
	}
	if len(stats.final) != 1 {
		t.Fatalf("only the requested round must be written: %+v", stats.final)
	}
	row := stats.final[0]
	if row.FixtureID != 300 || row.TotalPoints != 6 || row.ICTIndex != 7.4 {
		t.Fatalf("unexpected fallback row: %+v", row)
	}
	if row.BonusStatus != playerstats.BonusConfirmed {
		t.Fatalf("bonus present means confirmed, got %q", row.BonusStatus)
	}
}

func TestPlayerRefreshService_FallbackSkipsFailedPlayers(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{
		elementSummaryFn: func(_ context.Context, playerID int) (fplapi.ElementSummary, error) {
			if playerID == 1 {
				return fplapi.ElementSummary{}, ErrDependencyUnavailable
			}
			return fplapi.ElementSummary{History: []fplapi.ElementHistoryItem{
				{Element: playerID, Fixture: 400, Round: 3, TotalPoints: 5, Minutes: 90},
			}}, nil
		},
	}

	svc, stats := newPlayerRefreshFixture(client)
	err := svc.RefreshPlayerStats(context.Background(), RefreshPlayerStatsParams{
		Gameweek:  3,
		PlayerIDs: []int{1, 2},
		Fixtures:  []fplapi.Fixture{{ID: 400, FinishedProvisional: true, Finished: true}},
	})
	if err != nil {
		t.Fatalf("one failed player must not abort the pass: %v", err)
	}
	if len(stats.final) != 1 || stats.final[0].PlayerID != 2 {
		t.Fatalf("surviving player must still be written: %+v", stats.final)
	}
}

func TestPlayerRefreshService_CatchUpConfirmedBonusCountsRemaining(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{
		elementSummaryFn: func(_ context.Context, playerID int) (fplapi.ElementSummary, error) {
			return fplapi.ElementSummary{History: []fplapi.ElementHistoryItem{
				{Element: playerID, Fixture: 500, Round: 9, TotalPoints: 7, Bonus: 3, Minutes: 90},
			}}, nil
		},
		fixturesFn: func(context.Context) ([]fplapi.Fixture, error) {
			return []fplapi.Fixture{{ID: 500, FinishedProvisional: true, Finished: true}}, nil
		},
	}

	svc, stats := newPlayerRefreshFixture(client)
	stats.provisional = []int{10, 11}

	remaining, err := svc.CatchUpConfirmedBonus(context.Background(), 9)
	if err != nil {
		t.Fatalf("CatchUpConfirmedBonus: %v", err)
	}
	if remaining != 2 {
		// The stub keeps reporting the same pending set; the service must
		// return whatever the recount says.
		t.Fatalf("remaining: got=%d want=2", remaining)
	}
	if len(stats.final) != 2 {
		t.Fatalf("both pending players must be rewritten: %+v", stats.final)
	}
	for _, row := range stats.final {
		if row.BonusStatus != playerstats.BonusConfirmed || row.Bonus != 3 {
			t.Fatalf("confirmed bonus row expected: %+v", row)
		}
	}
}

func TestPlayerRefreshService_SyncPlayersFromBootstrap(t *testing.T) {
	t.Parallel()

	players := &stubPlayerRepo{}
	teams := &stubTeamRepo{}
	svc := NewPlayerRefreshService(&fakeUpstream{}, players, teams, &stubStatsRepo{}, &stubFixtureRepo{}, logging.NewNop())

	bootstrap := fplapi.Bootstrap{
		Teams: []fplapi.Team{{ID: 1, Name: "Arsenal", ShortName: "ARS", Strength: 5}},
		Elements: []fplapi.Element{
			{ID: 10, Team: 1, ElementType: 4, WebName: "Starboy", NowCost: 105, SelectedByPercent: "42.7"},
		},
	}
	if err := svc.SyncPlayersFromBootstrap(context.Background(), bootstrap); err != nil {
		t.Fatalf("SyncPlayersFromBootstrap: %v", err)
	}

	if len(teams.teams) != 1 || teams.teams[0].ShortName != "ARS" {
		t.Fatalf("teams not synced: %+v", teams.teams)
	}
	if len(players.players) != 1 {
		t.Fatalf("players not synced: %+v", players.players)
	}
	got := players.players[0]
	if got.Position != player.PositionForward || got.CostTenths != 105 || got.SelectedByPercent != 42.7 {
		t.Fatalf("unexpected player row: %+v", got)
	}
}
