package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	"github.com/riskibarqy/fpl-mirror/internal/domain/minileague"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

type historyKey struct {
	managerID int
	gameweek  int
}

type stubManagerRepo struct {
	picks      map[historyKey][]manager.Pick
	transfers  []manager.Transfer
	histories  map[historyKey]manager.History
	livePoints map[historyKey][2]int
	miniRanks  map[historyKey]int
}

var _ manager.Repository = (*stubManagerRepo)(nil)

func newStubManagerRepo() *stubManagerRepo {
	return &stubManagerRepo{
		picks:      make(map[historyKey][]manager.Pick),
		histories:  make(map[historyKey]manager.History),
		livePoints: make(map[historyKey][2]int),
		miniRanks:  make(map[historyKey]int),
	}
}

func (s *stubManagerRepo) Upsert(context.Context, manager.Manager) error { return nil }

func (s *stubManagerRepo) ReplacePicks(_ context.Context, managerID, gameweekID int, picks []manager.Pick) error {
	s.picks[historyKey{managerID, gameweekID}] = picks
	return nil
}

func (s *stubManagerRepo) GetPicks(_ context.Context, managerID, gameweekID int) ([]manager.Pick, error) {
	return s.picks[historyKey{managerID, gameweekID}], nil
}

func (s *stubManagerRepo) UpsertTransfers(_ context.Context, items []manager.Transfer) error {
	s.transfers = append(s.transfers, items...)
	return nil
}

func (s *stubManagerRepo) CountTransfers(_ context.Context, managerID, gameweekID int) (int, error) {
	count := 0
	for _, item := range s.transfers {
		if item.ManagerID == managerID && item.GameweekID == gameweekID {
			count++
		}
	}
	return count, nil
}

func (s *stubManagerRepo) UpsertHistory(_ context.Context, item manager.History) error {
	key := historyKey{item.ManagerID, item.GameweekID}
	if existing, ok := s.histories[key]; ok {
		// Mirror the store's COALESCE on baseline and previous columns.
		if item.BaselineTotalPoints == nil {
			item.BaselineTotalPoints = existing.BaselineTotalPoints
		}
		if item.PreviousOverallRank == nil {
			item.PreviousOverallRank = existing.PreviousOverallRank
		}
		if item.PreviousMiniLeagueRank == nil {
			item.PreviousMiniLeagueRank = existing.PreviousMiniLeagueRank
		}
	}
	s.histories[key] = item
	return nil
}

func (s *stubManagerRepo) GetHistory(_ context.Context, managerID, gameweekID int) (manager.History, bool, error) {
	item, ok := s.histories[historyKey{managerID, gameweekID}]
	return item, ok, nil
}

func (s *stubManagerRepo) ListHistoryByGameweek(_ context.Context, gameweekID int, managerIDs []int) ([]manager.History, error) {
	wanted := make(map[int]bool, len(managerIDs))
	for _, id := range managerIDs {
		wanted[id] = true
	}
	var out []manager.History
	for key, item := range s.histories {
		if key.gameweek == gameweekID && wanted[key.managerID] {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ManagerID < out[j].ManagerID })
	return out, nil
}

func (s *stubManagerRepo) UpdateLivePoints(_ context.Context, managerID, gameweekID, gameweekPoints, totalPoints int) error {
	s.livePoints[historyKey{managerID, gameweekID}] = [2]int{gameweekPoints, totalPoints}
	return nil
}

func (s *stubManagerRepo) SetBaseline(_ context.Context, managerID, gameweekID, baselineTotalPoints int, previousOverallRank, previousMiniLeagueRank *int) error {
	key := historyKey{managerID, gameweekID}
	item := s.histories[key]
	if item.BaselineTotalPoints != nil {
		return nil
	}
	item.ManagerID = managerID
	item.GameweekID = gameweekID
	item.BaselineTotalPoints = &baselineTotalPoints
	item.PreviousOverallRank = previousOverallRank
	item.PreviousMiniLeagueRank = previousMiniLeagueRank
	s.histories[key] = item
	return nil
}

func (s *stubManagerRepo) UpdateMiniLeagueRank(_ context.Context, managerID, gameweekID, rank int, change *int) error {
	key := historyKey{managerID, gameweekID}
	s.miniRanks[key] = rank
	item := s.histories[key]
	item.MiniLeagueRank = &rank
	item.MiniLeagueRankChange = change
	s.histories[key] = item
	return nil
}

type stubLeagueRepo struct {
	leagues   []minileague.League
	members   map[int][]int
	whitelist map[historyKey][]int
}

var _ minileague.Repository = (*stubLeagueRepo)(nil)

func newStubLeagueRepo() *stubLeagueRepo {
	return &stubLeagueRepo{
		members:   make(map[int][]int),
		whitelist: make(map[historyKey][]int),
	}
}

func (s *stubLeagueRepo) UpsertLeague(_ context.Context, item minileague.League) error {
	s.leagues = append(s.leagues, item)
	return nil
}

func (s *stubLeagueRepo) UpsertMembers(_ context.Context, items []minileague.Member) error {
	for _, item := range items {
		s.members[item.LeagueID] = append(s.members[item.LeagueID], item.ManagerID)
	}
	return nil
}

func (s *stubLeagueRepo) ListLeagues(context.Context) ([]minileague.League, error) {
	return s.leagues, nil
}

func (s *stubLeagueRepo) ListMemberIDs(_ context.Context, leagueID int) ([]int, error) {
	return s.members[leagueID], nil
}

func (s *stubLeagueRepo) ListTrackedManagerIDs(context.Context) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	for _, members := range s.members {
		for _, id := range members {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

func (s *stubLeagueRepo) ReplacePlayerWhitelist(_ context.Context, leagueID, gameweekID int, playerIDs []int) error {
	s.whitelist[historyKey{leagueID, gameweekID}] = playerIDs
	return nil
}

func newManagerRefreshFixture(client UpstreamClient, managers *stubManagerRepo, stats *stubStatsRepo, fixtures *stubFixtureRepo) *ManagerRefreshService {
	if managers == nil {
		managers = newStubManagerRepo()
	}
	if stats == nil {
		stats = &stubStatsRepo{}
	}
	if fixtures == nil {
		fixtures = &stubFixtureRepo{}
	}
	svc := NewManagerRefreshService(
		client,
		managers,
		newStubLeagueRepo(),
		&stubPlayerRepo{},
		stats,
		fixtures,
		ManagerRefreshConfig{BatchSize: 2},
		logging.NewNop(),
	)
	return svc
}

func intPtr(v int) *int { return &v }

func TestManagerRefreshService_RefreshPicksAdoptsUpstreamSubs(t *testing.T) {
	t.Parallel()

	chip := manager.ChipTripleCaptain
	client := &fakeUpstream{
		entryPicksFn: func(context.Context, int, int) (fplapi.EntryPicks, error) {
			return fplapi.EntryPicks{
				ActiveChip: &chip,
				AutomaticSubs: []fplapi.AutomaticSub{
					{ElementOut: 5, ElementIn: 12},
				},
				EntryHistory: fplapi.EntryHistoryRow{Rank: intPtr(4321), EventTransfersCost: 4},
				Picks: []fplapi.Pick{
					{Element: 5, Position: 1, Multiplier: 1, IsCaptain: true},
					{Element: 12, Position: 12, Multiplier: 0},
				},
			}, nil
		},
	}

	managers := newStubManagerRepo()
	stats := &stubStatsRepo{rows: []playerstats.Stats{
		{PlayerID: 5, GameweekID: 9, FixtureID: 60, Minutes: 0, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
		{PlayerID: 12, GameweekID: 9, FixtureID: 61, Minutes: 90, TotalPoints: 5, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
	}}
	svc := newManagerRefreshFixture(client, managers, stats, nil)

	meta, err := svc.RefreshPicks(context.Background(), 77, 9)
	if err != nil {
		t.Fatalf("RefreshPicks: %v", err)
	}

	if meta.ActiveChip != manager.ChipTripleCaptain || meta.TransferCost != 4 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.GameweekRank == nil || *meta.GameweekRank != 4321 {
		t.Fatalf("gameweek rank not carried: %+v", meta.GameweekRank)
	}

	picks := managers.picks[historyKey{77, 9}]
	if len(picks) != 2 {
		t.Fatalf("picks not stored: %+v", picks)
	}
	if picks[0].Multiplier != 3 {
		t.Fatalf("triple-captain multiplier must be normalized to 3, got %d", picks[0].Multiplier)
	}
	if !picks[0].WasAutoSubbedOut {
		t.Fatalf("outgoing starter flag missing: %+v", picks[0])
	}
	if !picks[1].WasAutoSubbedIn || picks[1].AutoSubReplacedPlayerID == nil || *picks[1].AutoSubReplacedPlayerID != 5 {
		t.Fatalf("incoming bench flags missing: %+v", picks[1])
	}
}

func TestManagerRefreshService_RefreshPicksRejectsUnconfirmedUpstreamSubs(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{
		entryPicksFn: func(context.Context, int, int) (fplapi.EntryPicks, error) {
			return fplapi.EntryPicks{
				AutomaticSubs: []fplapi.AutomaticSub{
					// Upstream claims 5 was subbed out, but the store shows the
					// player came on for 12 minutes once all fixtures wrapped.
					{ElementOut: 5, ElementIn: 12},
				},
				Picks: []fplapi.Pick{
					{Element: 5, Position: 1, Multiplier: 1},
					{Element: 12, Position: 12, Multiplier: 0},
				},
			}, nil
		},
	}

	managers := newStubManagerRepo()
	stats := &stubStatsRepo{rows: []playerstats.Stats{
		{PlayerID: 5, GameweekID: 9, FixtureID: 60, Minutes: 12, TotalPoints: 1, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
		{PlayerID: 12, GameweekID: 9, FixtureID: 61, Minutes: 90, TotalPoints: 5, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
	}}
	svc := newManagerRefreshFixture(client, managers, stats, nil)

	if _, err := svc.RefreshPicks(context.Background(), 77, 9); err != nil {
		t.Fatalf("RefreshPicks: %v", err)
	}

	picks := managers.picks[historyKey{77, 9}]
	if len(picks) != 2 {
		t.Fatalf("picks not stored: %+v", picks)
	}
	if picks[0].WasAutoSubbedOut {
		t.Fatalf("starter with minutes on the board must not be flagged out: %+v", picks[0])
	}
	if picks[1].WasAutoSubbedIn || picks[1].AutoSubReplacedPlayerID != nil {
		t.Fatalf("bench player must not be flagged in for a retracted substitution: %+v", picks[1])
	}
}

func TestManagerRefreshService_RefreshPicksInfersSubsWhenUpstreamOmits(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{
		entryPicksFn: func(context.Context, int, int) (fplapi.EntryPicks, error) {
			return fplapi.EntryPicks{
				Picks: []fplapi.Pick{
					{Element: 1, Position: 1, Multiplier: 1},
					{Element: 2, Position: 12, Multiplier: 0},
				},
			}, nil
		},
	}

	managers := newStubManagerRepo()
	stats := &stubStatsRepo{rows: []playerstats.Stats{
		{PlayerID: 1, FixtureID: 50, Minutes: 0, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
		{PlayerID: 2, FixtureID: 51, Minutes: 90, TotalPoints: 6, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
	}}
	svc := NewManagerRefreshService(
		client,
		managers,
		newStubLeagueRepo(),
		&stubPlayerRepo{positions: map[int]string{1: "GK", 2: "GK"}},
		stats,
		&stubFixtureRepo{},
		ManagerRefreshConfig{BatchSize: 2},
		logging.NewNop(),
	)

	if _, err := svc.RefreshPicks(context.Background(), 1, 4); err != nil {
		t.Fatalf("RefreshPicks: %v", err)
	}

	picks := managers.picks[historyKey{1, 4}]
	if !picks[0].WasAutoSubbedOut || !picks[1].WasAutoSubbedIn {
		t.Fatalf("inferred substitution not applied: %+v", picks)
	}
}

func TestManagerRefreshService_RefreshTransfersFiltersAndAnnotates(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{
		entryTransfersFn: func(context.Context, int) ([]fplapi.Transfer, error) {
			return []fplapi.Transfer{
				{Entry: 9, Event: 6, ElementIn: 10, ElementInCost: 80, ElementOut: 11, ElementOutCost: 60, Time: time.Now()},
				{Entry: 9, Event: 5, ElementIn: 20, ElementInCost: 50, ElementOut: 21, ElementOutCost: 45, Time: time.Now()},
			}, nil
		},
	}

	managers := newStubManagerRepo()
	svc := newManagerRefreshFixture(client, managers, nil, nil)

	bootstrap := &fplapi.Bootstrap{Elements: []fplapi.Element{
		{ID: 10, NowCost: 85}, {ID: 11, NowCost: 58},
	}}
	count, err := svc.RefreshTransfers(context.Background(), 9, 6, bootstrap)
	if err != nil {
		t.Fatalf("RefreshTransfers: %v", err)
	}
	if count != 1 {
		t.Fatalf("only this gameweek's transfers must be kept, got %d", count)
	}
	row := managers.transfers[0]
	// In rose 80→85 (+5), out fell 60→58 (−2): the swap gained 7 tenths.
	if row.NetPriceChangeTenths != 7 {
		t.Fatalf("net price change: got=%d want=7", row.NetPriceChangeTenths)
	}
}

func TestManagerRefreshService_MiniLeagueRanksShareTies(t *testing.T) {
	t.Parallel()

	managers := newStubManagerRepo()
	managers.histories[historyKey{1, 7}] = manager.History{ManagerID: 1, GameweekID: 7, TotalPoints: 100, PreviousMiniLeagueRank: intPtr(2)}
	managers.histories[historyKey{2, 7}] = manager.History{ManagerID: 2, GameweekID: 7, TotalPoints: 100}
	managers.histories[historyKey{3, 7}] = manager.History{ManagerID: 3, GameweekID: 7, TotalPoints: 95}

	leagues := newStubLeagueRepo()
	leagues.members[55] = []int{1, 2, 3}

	kickoff := time.Now().Add(-time.Hour)
	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{{ID: 1, GameweekID: 7, KickoffAt: &kickoff}}}

	svc := NewManagerRefreshService(
		&fakeUpstream{}, managers, leagues, &stubPlayerRepo{}, &stubStatsRepo{}, fixtures,
		ManagerRefreshConfig{BatchSize: 2}, logging.NewNop(),
	)

	if err := svc.CalculateMiniLeagueRanks(context.Background(), 55, 7); err != nil {
		t.Fatalf("CalculateMiniLeagueRanks: %v", err)
	}

	want := map[historyKey]int{{1, 7}: 1, {2, 7}: 1, {3, 7}: 3}
	for key, expected := range want {
		if got := managers.miniRanks[key]; got != expected {
			t.Fatalf("manager %d rank: got=%d want=%d", key.managerID, got, expected)
		}
	}
	if change := managers.histories[historyKey{1, 7}].MiniLeagueRankChange; change == nil || *change != 1 {
		t.Fatalf("rank change must be previous−current: %+v", change)
	}
}

func TestManagerRefreshService_MiniLeagueRanksGatedBeforeKickoff(t *testing.T) {
	t.Parallel()

	managers := newStubManagerRepo()
	managers.histories[historyKey{1, 7}] = manager.History{ManagerID: 1, GameweekID: 7, TotalPoints: 10}

	leagues := newStubLeagueRepo()
	leagues.members[55] = []int{1}

	kickoff := time.Now().Add(time.Hour)
	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{{ID: 1, GameweekID: 7, KickoffAt: &kickoff}}}

	svc := NewManagerRefreshService(
		&fakeUpstream{}, managers, leagues, &stubPlayerRepo{}, &stubStatsRepo{}, fixtures,
		ManagerRefreshConfig{BatchSize: 2}, logging.NewNop(),
	)

	if err := svc.CalculateMiniLeagueRanks(context.Background(), 55, 7); err != nil {
		t.Fatalf("CalculateMiniLeagueRanks: %v", err)
	}
	if len(managers.miniRanks) != 0 {
		t.Fatalf("ranks must not move before the first kickoff: %+v", managers.miniRanks)
	}
}

func TestManagerRefreshService_SeedHistoryPreservesLivePoints(t *testing.T) {
	t.Parallel()

	managers := newStubManagerRepo()
	managers.histories[historyKey{3, 9}] = manager.History{
		ManagerID: 3, GameweekID: 9, TotalPoints: 500,
		TeamValueTenths: 1010, BankTenths: 15, OverallRank: intPtr(90000),
	}
	// The live path got here first.
	managers.histories[historyKey{3, 10}] = manager.History{ManagerID: 3, GameweekID: 10, GameweekPoints: 12}

	svc := newManagerRefreshFixture(&fakeUpstream{}, managers, nil, nil)

	meta := map[int]PicksMeta{3: {ActiveChip: manager.ChipBenchBoost, GameweekRank: intPtr(777), TransferCost: 4}}
	if err := svc.SeedHistoryFromPrevious(context.Background(), []int{3}, 10, meta); err != nil {
		t.Fatalf("SeedHistoryFromPrevious: %v", err)
	}

	row := managers.histories[historyKey{3, 10}]
	if row.GameweekPoints != 12 {
		t.Fatalf("live points must survive seeding: %+v", row)
	}
	if row.TotalPoints != 512 {
		t.Fatalf("total must anchor on previous total plus live points: got=%d", row.TotalPoints)
	}
	if row.TeamValueTenths != 1010 || row.BankTenths != 15 {
		t.Fatalf("team value/bank not carried: %+v", row)
	}
	if row.ActiveChip != manager.ChipBenchBoost || row.TransferCost != 4 {
		t.Fatalf("picks meta not applied: %+v", row)
	}
	if row.GameweekRank == nil || *row.GameweekRank != 777 {
		t.Fatalf("gameweek rank not applied: %+v", row.GameweekRank)
	}
}

func TestManagerRefreshService_LiveOnlyPointsReportPartialFailure(t *testing.T) {
	t.Parallel()

	managers := newStubManagerRepo()
	managers.picks[historyKey{1, 5}] = []manager.Pick{{ManagerID: 1, GameweekID: 5, Position: 1, PlayerID: 30, Multiplier: 1}}
	// Manager 2 has no stored picks and must count as a failure.

	stats := &stubStatsRepo{rows: []playerstats.Stats{
		{PlayerID: 30, GameweekID: 5, FixtureID: 70, TotalPoints: 8, Minutes: 90, MatchFinished: true, BonusStatus: playerstats.BonusConfirmed},
	}}

	svc := newManagerRefreshFixture(&fakeUpstream{}, managers, stats, nil)

	ok, err := svc.RefreshManagerPointsLiveOnly(context.Background(), []int{1, 2}, 5)
	if err != nil {
		t.Fatalf("RefreshManagerPointsLiveOnly: %v", err)
	}
	if ok {
		t.Fatalf("partial cohort must not report success")
	}
	if got := managers.livePoints[historyKey{1, 5}]; got != [2]int{8, 8} {
		t.Fatalf("survivor must still be scored: %+v", got)
	}
}

func TestManagerRefreshService_PointsFromLiveDataSkipsStatsTable(t *testing.T) {
	t.Parallel()

	managers := newStubManagerRepo()
	managers.picks[historyKey{4, 6}] = []manager.Pick{
		{ManagerID: 4, GameweekID: 6, Position: 1, PlayerID: 30, Multiplier: 2, IsCaptain: true},
	}
	managers.histories[historyKey{4, 6}] = manager.History{
		ManagerID: 4, GameweekID: 6, BaselineTotalPoints: intPtr(300),
	}

	live := &fplapi.EventLive{Elements: []fplapi.LiveElement{{
		ID:    30,
		Stats: fplapi.LiveStats{Minutes: 60, TotalPoints: 7, BPS: 20},
		Explain: []fplapi.LiveExplain{
			{Fixture: 90, Stats: []fplapi.LiveExplainEntry{{Identifier: "minutes", Points: 2, Value: 60}}},
		},
	}}}
	fixturesByID := map[int]fplapi.Fixture{90: {ID: 90, TeamH: 1, TeamA: 2}}

	svc := newManagerRefreshFixture(&fakeUpstream{}, managers, &stubStatsRepo{}, nil)

	ok, err := svc.RefreshManagerPointsFromLiveData(context.Background(), []int{4}, 6, live, fixturesByID)
	if err != nil {
		t.Fatalf("RefreshManagerPointsFromLiveData: %v", err)
	}
	if !ok {
		t.Fatalf("cohort must report success")
	}
	if got := managers.livePoints[historyKey{4, 6}]; got != [2]int{14, 314} {
		t.Fatalf("captain live points: got=%v want=[14 314]", got)
	}
}

func TestManagerRefreshService_CheckRankChange(t *testing.T) {
	t.Parallel()

	managers := newStubManagerRepo()
	managers.histories[historyKey{8, 3}] = manager.History{
		ManagerID: 8, GameweekID: 3, OverallRank: intPtr(50000), GameweekRank: intPtr(1200),
	}

	client := &fakeUpstream{
		entryHistoryFn: func(context.Context, int) (fplapi.EntryHistory, error) {
			return fplapi.EntryHistory{Current: []fplapi.EntryHistoryRow{
				{Event: 3, OverallRank: intPtr(48000)},
			}}, nil
		},
	}

	svc := newManagerRefreshFixture(client, managers, nil, nil)

	changed, err := svc.CheckRankChange(context.Background(), 8, 3)
	if err != nil {
		t.Fatalf("CheckRankChange: %v", err)
	}
	if !changed {
		t.Fatalf("overall rank moved upstream; change must be detected")
	}

	// Same ranks upstream: no change.
	same := &fakeUpstream{
		entryHistoryFn: func(context.Context, int) (fplapi.EntryHistory, error) {
			return fplapi.EntryHistory{Current: []fplapi.EntryHistoryRow{
				{Event: 3, OverallRank: intPtr(50000)},
			}}, nil
		},
		entryPicksFn: func(context.Context, int, int) (fplapi.EntryPicks, error) {
			return fplapi.EntryPicks{EntryHistory: fplapi.EntryHistoryRow{Rank: intPtr(1200)}}, nil
		},
	}
	svc = newManagerRefreshFixture(same, managers, nil, nil)
	changed, err = svc.CheckRankChange(context.Background(), 8, 3)
	if err != nil {
		t.Fatalf("CheckRankChange: %v", err)
	}
	if changed {
		t.Fatalf("identical ranks must not report a change")
	}
}
