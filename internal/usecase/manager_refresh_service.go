package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	"github.com/riskibarqy/fpl-mirror/internal/domain/minileague"
	"github.com/riskibarqy/fpl-mirror/internal/domain/player"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

const defaultManagerBatchSize = 5

// ManagerRefreshConfig bounds the per-manager upstream fan-out. The deadline
// pair paces the picks-and-transfers cohort sweep, which makes two upstream
// calls per manager; when unset it falls back to the live fan-out values.
type ManagerRefreshConfig struct {
	BatchSize          int
	BatchSleep         time.Duration
	DeadlineBatchSize  int
	DeadlineBatchSleep time.Duration
}

// ManagerRefreshService keeps the tracked cohort's picks, transfers and
// per-gameweek history in sync with upstream, and recomputes live points
// store-side between upstream refreshes.
type ManagerRefreshService struct {
	client   UpstreamClient
	managers manager.Repository
	leagues  minileague.Repository
	players  player.Repository
	stats    playerstats.Repository
	fixtures fixture.Repository
	calc     PointsCalculator
	logger   *logging.Logger

	batchSize          int
	batchSleep         time.Duration
	deadlineBatchSize  int
	deadlineBatchSleep time.Duration
	now                func() time.Time
}

func NewManagerRefreshService(
	client UpstreamClient,
	managers manager.Repository,
	leagues minileague.Repository,
	players player.Repository,
	stats playerstats.Repository,
	fixtures fixture.Repository,
	cfg ManagerRefreshConfig,
	logger *logging.Logger,
) *ManagerRefreshService {
	if logger == nil {
		logger = logging.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultManagerBatchSize
	}
	deadlineBatchSize := cfg.DeadlineBatchSize
	if deadlineBatchSize <= 0 {
		deadlineBatchSize = batchSize
	}
	deadlineBatchSleep := cfg.DeadlineBatchSleep
	if deadlineBatchSleep <= 0 {
		deadlineBatchSleep = cfg.BatchSleep
	}
	return &ManagerRefreshService{
		client:             client,
		managers:           managers,
		leagues:            leagues,
		players:            players,
		stats:              stats,
		fixtures:           fixtures,
		logger:             logger,
		batchSize:          batchSize,
		batchSleep:         cfg.BatchSleep,
		deadlineBatchSize:  deadlineBatchSize,
		deadlineBatchSleep: deadlineBatchSleep,
		now:                time.Now,
	}
}

// PicksMeta is the slice of the picks payload the deadline batch carries
// forward into history seeding.
type PicksMeta struct {
	ActiveChip   string
	GameweekRank *int
	TransferCost int
}

// RefreshPicks fetches and stores a manager's 15 picks for the gameweek.
// When upstream omits automatic_subs the substitutions are inferred from the
// stored player stats instead.
func (s *ManagerRefreshService) RefreshPicks(ctx context.Context, managerID, gameweek int) (PicksMeta, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshPicks")
	defer span.End()

	if managerID <= 0 || gameweek <= 0 {
		return PicksMeta{}, fmt.Errorf("%w: manager and gameweek are required", ErrInvalidInput)
	}

	payload, err := s.client.EntryPicks(ctx, managerID, gameweek)
	if err != nil {
		return PicksMeta{}, fmt.Errorf("fetch picks manager=%d gw=%d: %w", managerID, gameweek, err)
	}

	activeChip := manager.ChipNone
	if payload.ActiveChip != nil {
		activeChip = *payload.ActiveChip
	}

	picks := make([]manager.Pick, 0, len(payload.Picks))
	for _, item := range payload.Picks {
		pick := manager.Pick{
			ManagerID:  managerID,
			GameweekID: gameweek,
			Position:   item.Position,
			PlayerID:   item.Element,
			IsCaptain:  item.IsCaptain,
			IsVice:     item.IsViceCaptain,
			Multiplier: item.Multiplier,
		}
		pick.Multiplier = s.calc.EffectiveMultiplier(pick, activeChip)
		picks = append(picks, pick)
	}

	subs := make([]AutoSub, 0, len(payload.AutomaticSubs))
	for _, sub := range payload.AutomaticSubs {
		subs = append(subs, AutoSub{OutPlayerID: sub.ElementOut, InPlayerID: sub.ElementIn})
	}
	subs = s.confirmedAutoSubs(ctx, gameweek, subs)
	if len(subs) == 0 {
		if inferred, inferErr := s.inferAutoSubsFromStore(ctx, gameweek, picks); inferErr != nil {
			s.logger.WarnContext(ctx, "auto-sub inference skipped",
				"manager_id", managerID, "gameweek", gameweek, "error", inferErr)
		} else {
			subs = inferred
		}
	}
	applyAutoSubFlags(picks, subs)

	if err := s.managers.ReplacePicks(ctx, managerID, gameweek, picks); err != nil {
		return PicksMeta{}, fmt.Errorf("replace picks manager=%d gw=%d: %w", managerID, gameweek, err)
	}

	return PicksMeta{
		ActiveChip:   activeChip,
		GameweekRank: payload.EntryHistory.Rank,
		TransferCost: payload.EntryHistory.EventTransfersCost,
	}, nil
}

// RefreshTransfers stores the gameweek's transfer rows, annotated with the
// players' current cost so readers can see value moved since the transfer.
func (s *ManagerRefreshService) RefreshTransfers(ctx context.Context, managerID, gameweek int, bootstrap *fplapi.Bootstrap) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshTransfers")
	defer span.End()

	history, err := s.client.EntryTransfers(ctx, managerID)
	if err != nil {
		return 0, fmt.Errorf("fetch transfers manager=%d: %w", managerID, err)
	}

	costByPlayer := make(map[int]int)
	if bootstrap != nil {
		for _, element := range bootstrap.Elements {
			costByPlayer[element.ID] = element.NowCost
		}
	}

	rows := make([]manager.Transfer, 0, len(history))
	for _, item := range history {
		if item.Event != gameweek {
			continue
		}
		row := manager.Transfer{
			ManagerID:      managerID,
			GameweekID:     gameweek,
			PlayerInID:     item.ElementIn,
			PlayerOutID:    item.ElementOut,
			PriceInTenths:  item.ElementInCost,
			PriceOutTenths: item.ElementOutCost,
			TransferAt:     item.Time,
		}
		if len(costByPlayer) > 0 {
			row.NetPriceChangeTenths = (costByPlayer[item.ElementIn] - item.ElementInCost) -
				(costByPlayer[item.ElementOut] - item.ElementOutCost)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.managers.UpsertTransfers(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert transfers manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	return len(rows), nil
}

// RefreshManagerHistory writes the authoritative history row for one manager:
// points computed from stored stats, ranks fetched from upstream, team value
// and bank from the entry endpoint. Baseline and previous-rank columns are
// never touched here.
func (s *ManagerRefreshService) RefreshManagerHistory(ctx context.Context, managerID, gameweek int) error {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshManagerHistory")
	defer span.End()

	picks, err := s.managers.GetPicks(ctx, managerID, gameweek)
	if err != nil {
		return fmt.Errorf("load picks manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	if len(picks) == 0 {
		if _, err := s.RefreshPicks(ctx, managerID, gameweek); err != nil {
			return err
		}
		if picks, err = s.managers.GetPicks(ctx, managerID, gameweek); err != nil {
			return fmt.Errorf("reload picks manager=%d gw=%d: %w", managerID, gameweek, err)
		}
	}

	entry, err := s.client.Entry(ctx, managerID)
	if err != nil {
		return fmt.Errorf("fetch entry manager=%d: %w", managerID, err)
	}
	if err := s.managers.Upsert(ctx, manager.Manager{
		ID:        managerID,
		FirstName: entry.PlayerFirstName,
		LastName:  entry.PlayerLastName,
		TeamName:  entry.Name,
	}); err != nil {
		return fmt.Errorf("upsert manager %d: %w", managerID, err)
	}

	entryHistory, err := s.client.EntryHistory(ctx, managerID)
	if err != nil {
		return fmt.Errorf("fetch entry history manager=%d: %w", managerID, err)
	}
	var upstreamRow *fplapi.EntryHistoryRow
	for i := range entryHistory.Current {
		if entryHistory.Current[i].Event == gameweek {
			upstreamRow = &entryHistory.Current[i]
			break
		}
	}

	payload, err := s.client.EntryPicks(ctx, managerID, gameweek)
	if err != nil {
		return fmt.Errorf("fetch picks meta manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	activeChip := manager.ChipNone
	if payload.ActiveChip != nil {
		activeChip = *payload.ActiveChip
	}

	rows, err := s.stats.ListByGameweek(ctx, gameweek)
	if err != nil {
		return fmt.Errorf("load player stats gw=%d: %w", gameweek, err)
	}
	aggregates := s.calc.AggregatePlayers(rows)

	subs := autoSubsFromPicks(picks)
	if len(subs) == 0 {
		positions, posErr := s.players.ListPositions(ctx, pickPlayerIDs(picks))
		if posErr != nil {
			return fmt.Errorf("load positions: %w", posErr)
		}
		subs = s.calc.InferAutoSubs(picks, aggregates, positions)
	}

	transferCost := 0
	transfersMade := 0
	if upstreamRow != nil {
		transferCost = upstreamRow.EventTransfersCost
		transfersMade = upstreamRow.EventTransfers
	}

	gameweekPoints, _ := s.calc.GameweekPoints(GameweekScoreInput{
		Picks:        picks,
		Aggregates:   aggregates,
		AutoSubs:     subs,
		ActiveChip:   activeChip,
		TransferCost: transferCost,
	})

	existing, hasExisting, err := s.managers.GetHistory(ctx, managerID, gameweek)
	if err != nil {
		return fmt.Errorf("load history manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	var baseline, prevTotal *int
	if hasExisting {
		baseline = existing.BaselineTotalPoints
	}
	if previous, ok, prevErr := s.managers.GetHistory(ctx, managerID, gameweek-1); prevErr == nil && ok {
		total := previous.TotalPoints
		prevTotal = &total
	}

	row := manager.History{
		ManagerID:       managerID,
		GameweekID:      gameweek,
		GameweekPoints:  gameweekPoints,
		TransferCost:    transferCost,
		TotalPoints:     s.calc.ResolveTotalPoints(baseline, prevTotal, gameweekPoints),
		GameweekRank:    payload.EntryHistory.Rank,
		TeamValueTenths: int(entry.LastDeadlineValue),
		BankTenths:      int(entry.LastDeadlineBank),
		ActiveChip:      activeChip,
		TransfersMade:   transfersMade,
	}
	if upstreamRow != nil {
		row.OverallRank = upstreamRow.OverallRank
	}
	if hasExisting {
		row.MiniLeagueRank = existing.MiniLeagueRank
		row.MiniLeagueRankChange = existing.MiniLeagueRankChange
		if row.OverallRank != nil && existing.PreviousOverallRank != nil {
			change := *existing.PreviousOverallRank - *row.OverallRank
			row.OverallRankChange = &change
		}
	}

	if err := s.managers.UpsertHistory(ctx, row); err != nil {
		return fmt.Errorf("upsert history manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	return nil
}

// RefreshManagerHistoryCohort runs RefreshManagerHistory across the cohort
// with the configured fan-out. It reports whether every manager succeeded.
func (s *ManagerRefreshService) RefreshManagerHistoryCohort(ctx context.Context, managerIDs []int, gameweek int) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshManagerHistoryCohort")
	defer span.End()

	succeeded, err := s.forEachManager(ctx, managerIDs, func(ctx context.Context, managerID int) error {
		return s.RefreshManagerHistory(ctx, managerID, gameweek)
	})
	return succeeded == len(managerIDs), err
}

// RefreshManagerPointsLiveOnly recomputes gameweek_points and total_points
// for the cohort from store state alone, with no upstream calls. The returned
// flag is true only when every manager updated, so callers can gate aggregate
// refreshes on a consistent cohort.
func (s *ManagerRefreshService) RefreshManagerPointsLiveOnly(ctx context.Context, managerIDs []int, gameweek int) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshManagerPointsLiveOnly")
	defer span.End()

	rows, err := s.stats.ListByGameweek(ctx, gameweek)
	if err != nil {
		return false, fmt.Errorf("load player stats gw=%d: %w", gameweek, err)
	}
	return s.scoreCohort(ctx, managerIDs, gameweek, s.calc.AggregatePlayers(rows))
}

// RefreshManagerPointsFromLiveData is the freshness path: it scores the
// cohort directly from an in-memory event-live payload, skipping the player
// stats table entirely.
func (s *ManagerRefreshService) RefreshManagerPointsFromLiveData(
	ctx context.Context,
	managerIDs []int,
	gameweek int,
	live *fplapi.EventLive,
	fixturesByID map[int]fplapi.Fixture,
) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshManagerPointsFromLiveData")
	defer span.End()

	if live == nil {
		return false, fmt.Errorf("%w: live payload is required", ErrInvalidInput)
	}

	noTeams := map[int]int{}
	var rows []playerstats.Stats
	for _, element := range live.Elements {
		rows = append(rows, rowsFromLiveElement(gameweek, element, fixturesByID, noTeams)...)
	}
	return s.scoreCohort(ctx, managerIDs, gameweek, s.calc.AggregatePlayers(rows))
}

func (s *ManagerRefreshService) scoreCohort(ctx context.Context, managerIDs []int, gameweek int, aggregates map[int]PlayerAggregate) (bool, error) {
	positions, err := s.players.ListPositions(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("load positions: %w", err)
	}

	succeeded, err := s.forEachManager(ctx, managerIDs, func(ctx context.Context, managerID int) error {
		return s.scoreManager(ctx, managerID, gameweek, aggregates, positions)
	})
	if err != nil {
		return false, err
	}
	return succeeded == len(managerIDs), nil
}

func (s *ManagerRefreshService) scoreManager(ctx context.Context, managerID, gameweek int, aggregates map[int]PlayerAggregate, positions map[int]string) error {
	picks, err := s.managers.GetPicks(ctx, managerID, gameweek)
	if err != nil {
		return fmt.Errorf("load picks manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	if len(picks) == 0 {
		return fmt.Errorf("%w: no picks stored for manager %d gw %d", ErrNotFound, managerID, gameweek)
	}

	history, hasHistory, err := s.managers.GetHistory(ctx, managerID, gameweek)
	if err != nil {
		return fmt.Errorf("load history manager=%d gw=%d: %w", managerID, gameweek, err)
	}

	subs := autoSubsFromPicks(picks)
	if len(subs) == 0 {
		subs = s.calc.InferAutoSubs(picks, aggregates, positions)
	}

	activeChip := manager.ChipNone
	transferCost := 0
	var baseline *int
	if hasHistory {
		activeChip = history.ActiveChip
		transferCost = history.TransferCost
		baseline = history.BaselineTotalPoints
	}

	gameweekPoints, _ := s.calc.GameweekPoints(GameweekScoreInput{
		Picks:        picks,
		Aggregates:   aggregates,
		AutoSubs:     subs,
		ActiveChip:   activeChip,
		TransferCost: transferCost,
	})

	var prevTotal *int
	if previous, ok, prevErr := s.managers.GetHistory(ctx, managerID, gameweek-1); prevErr == nil && ok {
		total := previous.TotalPoints
		prevTotal = &total
	}

	totalPoints := s.calc.ResolveTotalPoints(baseline, prevTotal, gameweekPoints)
	if err := s.managers.UpdateLivePoints(ctx, managerID, gameweek, gameweekPoints, totalPoints); err != nil {
		return fmt.Errorf("update live points manager=%d gw=%d: %w", managerID, gameweek, err)
	}
	return nil
}

// SeedHistoryFromPrevious creates the new gameweek's history rows right after
// the deadline, anchored on the previous gameweek's totals. An existing row
// with non-zero gameweek_points keeps its points: the live path may already
// have written them.
func (s *ManagerRefreshService) SeedHistoryFromPrevious(ctx context.Context, managerIDs []int, newGameweek int, picksMeta map[int]PicksMeta) error {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.SeedHistoryFromPrevious")
	defer span.End()

	if newGameweek <= 0 {
		return fmt.Errorf("%w: gameweek is required", ErrInvalidInput)
	}

	for _, managerID := range managerIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		previous, hasPrevious, err := s.managers.GetHistory(ctx, managerID, newGameweek-1)
		if err != nil {
			return fmt.Errorf("load previous history manager=%d: %w", managerID, err)
		}
		existing, hasExisting, err := s.managers.GetHistory(ctx, managerID, newGameweek)
		if err != nil {
			return fmt.Errorf("load existing history manager=%d: %w", managerID, err)
		}
		transfersMade, err := s.managers.CountTransfers(ctx, managerID, newGameweek)
		if err != nil {
			return fmt.Errorf("count transfers manager=%d: %w", managerID, err)
		}

		meta := picksMeta[managerID]
		row := manager.History{
			ManagerID:     managerID,
			GameweekID:    newGameweek,
			ActiveChip:    meta.ActiveChip,
			GameweekRank:  meta.GameweekRank,
			TransferCost:  meta.TransferCost,
			TransfersMade: transfersMade,
		}
		if hasPrevious {
			row.TotalPoints = previous.TotalPoints
			row.TeamValueTenths = previous.TeamValueTenths
			row.BankTenths = previous.BankTenths
			row.OverallRank = previous.OverallRank
			row.MiniLeagueRank = previous.MiniLeagueRank
		}
		if hasExisting && existing.GameweekPoints != 0 {
			row.GameweekPoints = existing.GameweekPoints
			row.TotalPoints += existing.GameweekPoints
		}

		if err := s.managers.UpsertHistory(ctx, row); err != nil {
			return fmt.Errorf("seed history manager=%d gw=%d: %w", managerID, newGameweek, err)
		}
	}
	return nil
}

// CalculateMiniLeagueRanks recomputes one league's standings for the
// gameweek. Nothing is recomputed until a fixture has kicked off, so the
// deadline-time ordering survives the pre-match window intact.
func (s *ManagerRefreshService) CalculateMiniLeagueRanks(ctx context.Context, leagueID, gameweek int) error {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.CalculateMiniLeagueRanks")
	defer span.End()

	fixtures, err := s.fixtures.ListByGameweek(ctx, gameweek)
	if err != nil {
		return fmt.Errorf("load fixtures gw=%d: %w", gameweek, err)
	}
	now := s.now().UTC()
	started := false
	for _, fx := range fixtures {
		if fx.HasStarted(now) {
			started = true
			break
		}
	}
	if !started {
		s.logger.DebugContext(ctx, "mini-league ranks preserved until first kickoff",
			"league_id", leagueID, "gameweek", gameweek)
		return nil
	}

	memberIDs, err := s.leagues.ListMemberIDs(ctx, leagueID)
	if err != nil {
		return fmt.Errorf("load league members league=%d: %w", leagueID, err)
	}
	rows, err := s.managers.ListHistoryByGameweek(ctx, gameweek, memberIDs)
	if err != nil {
		return fmt.Errorf("load cohort history gw=%d: %w", gameweek, err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].ManagerID < rows[j].ManagerID
	})

	rank := 0
	for idx, row := range rows {
		if idx == 0 || row.TotalPoints != rows[idx-1].TotalPoints {
			rank = idx + 1
		}
		var change *int
		if row.PreviousMiniLeagueRank != nil {
			delta := *row.PreviousMiniLeagueRank - rank
			change = &delta
		}
		if err := s.managers.UpdateMiniLeagueRank(ctx, row.ManagerID, gameweek, rank, change); err != nil {
			return fmt.Errorf("update mini-league rank manager=%d: %w", row.ManagerID, err)
		}
	}
	return nil
}

// CheckRankChange polls one manager and reports whether upstream now shows a
// different overall or gameweek rank than the store. A true result tells the
// orchestrator that upstream has finalized ranks for the gameweek.
func (s *ManagerRefreshService) CheckRankChange(ctx context.Context, sampleManagerID, gameweek int) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.CheckRankChange")
	defer span.End()

	stored, found, err := s.managers.GetHistory(ctx, sampleManagerID, gameweek)
	if err != nil {
		return false, fmt.Errorf("load history manager=%d gw=%d: %w", sampleManagerID, gameweek, err)
	}
	if !found {
		return false, nil
	}

	entryHistory, err := s.client.EntryHistory(ctx, sampleManagerID)
	if err != nil {
		return false, fmt.Errorf("fetch entry history manager=%d: %w", sampleManagerID, err)
	}
	for _, row := range entryHistory.Current {
		if row.Event != gameweek {
			continue
		}
		if rankDiffers(row.OverallRank, stored.OverallRank) {
			return true, nil
		}
	}

	payload, err := s.client.EntryPicks(ctx, sampleManagerID, gameweek)
	if err != nil {
		return false, fmt.Errorf("fetch picks manager=%d gw=%d: %w", sampleManagerID, gameweek, err)
	}
	return rankDiffers(payload.EntryHistory.Rank, stored.GameweekRank), nil
}

// maxStandingsPages caps league pagination so a misconfigured league id
// pointing at a huge public league cannot stall the refresher.
const maxStandingsPages = 20

// SyncMiniLeague fetches a league's standings pages and stores the league and
// its membership. The returned slice holds the member manager ids.
func (s *ManagerRefreshService) SyncMiniLeague(ctx context.Context, leagueID int) ([]int, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.SyncMiniLeague")
	defer span.End()

	var memberIDs []int
	var members []minileague.Member
	for page := 1; page <= maxStandingsPages; page++ {
		standings, err := s.client.LeagueStandings(ctx, leagueID, page)
		if err != nil {
			return nil, fmt.Errorf("fetch standings league=%d page=%d: %w", leagueID, page, err)
		}
		if page == 1 {
			if err := s.leagues.UpsertLeague(ctx, minileague.League{
				ID:   standings.League.ID,
				Name: standings.League.Name,
			}); err != nil {
				return nil, fmt.Errorf("upsert league %d: %w", leagueID, err)
			}
		}
		for _, result := range standings.Standings.Results {
			memberIDs = append(memberIDs, result.Entry)
			members = append(members, minileague.Member{LeagueID: leagueID, ManagerID: result.Entry})
		}
		if !standings.Standings.HasNext {
			break
		}
	}

	if len(members) > 0 {
		if err := s.leagues.UpsertMembers(ctx, members); err != nil {
			return nil, fmt.Errorf("upsert league members league=%d: %w", leagueID, err)
		}
	}
	return memberIDs, nil
}

// RefreshPicksAndTransfersCohort runs picks and transfers refreshes for the
// cohort, the two per-manager calls in parallel, managers fanned out on the
// deadline pacing. It returns the collected picks meta and the success count
// so the deadline batch can apply its threshold.
func (s *ManagerRefreshService) RefreshPicksAndTransfersCohort(ctx context.Context, managerIDs []int, gameweek int, bootstrap *fplapi.Bootstrap) (map[int]PicksMeta, int, error) {
	ctx, span := startUsecaseSpan(ctx, "ManagerRefreshService.RefreshPicksAndTransfersCohort")
	defer span.End()

	var mu sync.Mutex
	meta := make(map[int]PicksMeta, len(managerIDs))

	succeeded, err := s.forEachManagerPaced(ctx, managerIDs, s.deadlineBatchSize, s.deadlineBatchSleep, func(ctx context.Context, managerID int) error {
		p := pool.New().WithContext(ctx)
		p.Go(func(ctx context.Context) error {
			picksMeta, picksErr := s.RefreshPicks(ctx, managerID, gameweek)
			if picksErr != nil {
				return picksErr
			}
			mu.Lock()
			meta[managerID] = picksMeta
			mu.Unlock()
			return nil
		})
		p.Go(func(ctx context.Context) error {
			_, transfersErr := s.RefreshTransfers(ctx, managerID, gameweek, bootstrap)
			return transfersErr
		})
		return p.Wait()
	})
	return meta, succeeded, err
}

// forEachManager fans managerIDs out over a bounded pool in batches of
// batchSize, sleeping batchSleep between batches to stay polite upstream.
// Failures are logged and counted, not propagated; the returned count is how
// many managers succeeded.
func (s *ManagerRefreshService) forEachManager(ctx context.Context, managerIDs []int, op func(ctx context.Context, managerID int) error) (int, error) {
	return s.forEachManagerPaced(ctx, managerIDs, s.batchSize, s.batchSleep, op)
}

func (s *ManagerRefreshService) forEachManagerPaced(ctx context.Context, managerIDs []int, batchSize int, batchSleep time.Duration, op func(ctx context.Context, managerID int) error) (int, error) {
	if len(managerIDs) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(batchSize)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var succeeded atomic.Int32
	for start := 0; start < len(managerIDs); start += batchSize {
		if ctx.Err() != nil {
			return int(succeeded.Load()), ctx.Err()
		}
		end := start + batchSize
		if end > len(managerIDs) {
			end = len(managerIDs)
		}

		var workers sync.WaitGroup
		for _, managerID := range managerIDs[start:end] {
			managerID := managerID
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()
				if opErr := op(ctx, managerID); opErr != nil {
					s.logger.WarnContext(ctx, "manager refresh failed",
						"manager_id", managerID, "error", opErr)
					return
				}
				succeeded.Add(1)
			}); err != nil {
				workers.Done()
				return int(succeeded.Load()), fmt.Errorf("submit manager task: %w", err)
			}
		}
		workers.Wait()

		if end < len(managerIDs) && batchSleep > 0 {
			timer := time.NewTimer(batchSleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return int(succeeded.Load()), ctx.Err()
			case <-timer.C:
			}
		}
	}
	return int(succeeded.Load()), nil
}

// confirmedAutoSubs keeps only upstream substitution pairs whose outgoing
// player truly blanked: every fixture finished and zero minutes in the stored
// stats. Upstream occasionally reports a pair mid-matchday and then retracts
// it when the player comes on late; adopting such a pair would flip the picks
// back and forth. Pairs the store cannot confirm are dropped, which hands the
// decision to the inference path. A store read failure keeps the upstream
// pairs as-is.
func (s *ManagerRefreshService) confirmedAutoSubs(ctx context.Context, gameweek int, subs []AutoSub) []AutoSub {
	if len(subs) == 0 {
		return subs
	}
	rows, err := s.stats.ListByGameweek(ctx, gameweek)
	if err != nil {
		s.logger.WarnContext(ctx, "auto-sub confirmation skipped",
			"gameweek", gameweek, "error", err)
		return subs
	}
	aggregates := s.calc.AggregatePlayers(rows)
	confirmed := subs[:0]
	for _, sub := range subs {
		agg, ok := aggregates[sub.OutPlayerID]
		if !ok || !agg.AllFixturesDone || agg.Minutes > 0 {
			continue
		}
		confirmed = append(confirmed, sub)
	}
	return confirmed
}

func (s *ManagerRefreshService) inferAutoSubsFromStore(ctx context.Context, gameweek int, picks []manager.Pick) ([]AutoSub, error) {
	rows, err := s.stats.ListByGameweek(ctx, gameweek)
	if err != nil {
		return nil, err
	}
	positions, err := s.players.ListPositions(ctx, pickPlayerIDs(picks))
	if err != nil {
		return nil, err
	}
	return s.calc.InferAutoSubs(picks, s.calc.AggregatePlayers(rows), positions), nil
}

func applyAutoSubFlags(picks []manager.Pick, subs []AutoSub) {
	if len(subs) == 0 {
		return
	}
	outToIn := make(map[int]int, len(subs))
	inToOut := make(map[int]int, len(subs))
	for _, sub := range subs {
		outToIn[sub.OutPlayerID] = sub.InPlayerID
		inToOut[sub.InPlayerID] = sub.OutPlayerID
	}
	for i := range picks {
		if _, ok := outToIn[picks[i].PlayerID]; ok {
			picks[i].WasAutoSubbedOut = true
		}
		if out, ok := inToOut[picks[i].PlayerID]; ok {
			picks[i].WasAutoSubbedIn = true
			replaced := out
			picks[i].AutoSubReplacedPlayerID = &replaced
		}
	}
}

func autoSubsFromPicks(picks []manager.Pick) []AutoSub {
	var subs []AutoSub
	for _, pick := range picks {
		if pick.WasAutoSubbedIn && pick.AutoSubReplacedPlayerID != nil {
			subs = append(subs, AutoSub{OutPlayerID: *pick.AutoSubReplacedPlayerID, InPlayerID: pick.PlayerID})
		}
	}
	return subs
}

func pickPlayerIDs(picks []manager.Pick) []int {
	out := make([]int, 0, len(picks))
	for _, pick := range picks {
		out = append(out, pick.PlayerID)
	}
	return out
}

func rankDiffers(upstream, stored *int) bool {
	if upstream == nil {
		return false
	}
	return stored == nil || *upstream != *stored
}
