package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
	"github.com/riskibarqy/fpl-mirror/internal/domain/aggregate"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/gameweek"
	"github.com/riskibarqy/fpl-mirror/internal/domain/minileague"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	"github.com/riskibarqy/fpl-mirror/internal/domain/refreshlog"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

// State is the orchestrator's mutually-exclusive operating mode, detected
// fresh every fast cycle.
type State string

const (
	StateOutsideGameweek  State = "OUTSIDE_GAMEWEEK"
	StatePriceWindow      State = "PRICE_WINDOW"
	StateLiveMatches      State = "LIVE_MATCHES"
	StateBonusPending     State = "BONUS_PENDING"
	StateTransferDeadline State = "TRANSFER_DEADLINE"
	StateIdle             State = "IDLE"
)

// OrchestratorConfig carries every cadence and window the loops obey.
type OrchestratorConfig struct {
	FastIntervalLive     time.Duration
	FastIntervalDeadline time.Duration
	FastIntervalPrice    time.Duration
	MaxIdleSleep         time.Duration
	KickoffWindow        time.Duration

	SlowIntervalLive time.Duration
	SlowIntervalIdle time.Duration
	IdleCohortEvery  time.Duration

	LiveStandingsInterval time.Duration
	FullRefreshLive       time.Duration

	DeadlineLag        time.Duration
	PostDeadlineSettle time.Duration

	PriceWindowStart    string // "17:30" wall clock in Location
	PriceWindowDuration time.Duration
	PriceCooldown       time.Duration
	Location            *time.Location

	RankMonitorInterval time.Duration
	RankMonitorAfter    time.Duration

	MiniLeagueIDs      []int
	RequiredManagerIDs []int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.FastIntervalLive <= 0 {
		c.FastIntervalLive = 10 * time.Second
	}
	if c.FastIntervalDeadline <= 0 {
		c.FastIntervalDeadline = 15 * time.Second
	}
	if c.FastIntervalPrice <= 0 {
		c.FastIntervalPrice = 30 * time.Second
	}
	if c.MaxIdleSleep <= 0 {
		c.MaxIdleSleep = time.Minute
	}
	if c.KickoffWindow <= 0 {
		c.KickoffWindow = 5 * time.Minute
	}
	if c.SlowIntervalLive <= 0 {
		c.SlowIntervalLive = time.Minute
	}
	if c.SlowIntervalIdle <= 0 {
		c.SlowIntervalIdle = 5 * time.Minute
	}
	if c.IdleCohortEvery <= 0 {
		c.IdleCohortEvery = time.Hour
	}
	if c.LiveStandingsInterval <= 0 {
		c.LiveStandingsInterval = 90 * time.Second
	}
	if c.FullRefreshLive <= 0 {
		c.FullRefreshLive = 5 * time.Minute
	}
	if c.DeadlineLag <= 0 {
		c.DeadlineLag = 40 * time.Minute
	}
	if c.PriceWindowStart == "" {
		c.PriceWindowStart = "17:30"
	}
	if c.PriceWindowDuration <= 0 {
		c.PriceWindowDuration = 6 * time.Minute
	}
	if c.PriceCooldown <= 0 {
		c.PriceCooldown = 10 * time.Minute
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.RankMonitorInterval <= 0 {
		c.RankMonitorInterval = 5 * time.Minute
	}
	if c.RankMonitorAfter <= 0 {
		c.RankMonitorAfter = 8 * time.Hour
	}
}

// Orchestrator owns the fast and slow refresh loops and all state detection.
type Orchestrator struct {
	client    UpstreamClient
	gameweeks gameweek.Repository
	fixtures  fixture.Repository
	stats     playerstats.Repository
	leagues   minileague.Repository
	batches   refreshlog.Repository
	views     aggregate.Refresher

	playerSvc   *PlayerRefreshService
	managerSvc  *ManagerRefreshService
	baselineSvc *BaselineService

	cfg    OrchestratorConfig
	logger *logging.Logger
	now    func() time.Time

	// In-memory cycle state; all of it is rebuildable from the store after a
	// crash, so none of it is persisted. Each field above the mutex is touched
	// by exactly one loop goroutine.
	lastLiveStandingsAt   time.Time
	lastFullLiveRefreshAt time.Time
	lastIdleCohortAt      time.Time
	lastRankProbeAt       time.Time
	priceWindowClosedAt   time.Time
	priceCooldownDue      bool
	bonusCaughtUpGW       int

	// deadlineDone memoizes completed deadline batches per gameweek. Both
	// loops read it through DetectState while the fast loop writes it, so it
	// lives behind its own mutex.
	deadlineMu   sync.Mutex
	deadlineDone map[int]bool
}

func NewOrchestrator(
	client UpstreamClient,
	gameweeks gameweek.Repository,
	fixtures fixture.Repository,
	stats playerstats.Repository,
	leagues minileague.Repository,
	batches refreshlog.Repository,
	views aggregate.Refresher,
	playerSvc *PlayerRefreshService,
	managerSvc *ManagerRefreshService,
	baselineSvc *BaselineService,
	cfg OrchestratorConfig,
	logger *logging.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		client:       client,
		gameweeks:    gameweeks,
		fixtures:     fixtures,
		stats:        stats,
		leagues:      leagues,
		batches:      batches,
		views:        views,
		playerSvc:    playerSvc,
		managerSvc:   managerSvc,
		baselineSvc:  baselineSvc,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		deadlineDone: make(map[int]bool),
	}
}

// Run drives both loops until ctx is cancelled. League membership is synced
// once up front so the first cycles have a cohort to work with.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, leagueID := range o.cfg.MiniLeagueIDs {
		if _, err := o.managerSvc.SyncMiniLeague(ctx, leagueID); err != nil {
			o.logger.WarnContext(ctx, "initial league sync failed", "league_id", leagueID, "error", err)
		}
	}

	p := pool.New().WithContext(ctx)
	p.Go(o.runFastLoop)
	p.Go(o.runSlowLoop)
	err := p.Wait()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (o *Orchestrator) runFastLoop(ctx context.Context) error {
	for {
		state := o.fastCycle(ctx)
		if err := sleepCtx(ctx, o.fastSleep(ctx, state)); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) runSlowLoop(ctx context.Context) error {
	for {
		interval := o.cfg.SlowIntervalIdle
		if state := o.slowCycle(ctx); state == StateLiveMatches || state == StateBonusPending {
			interval = o.cfg.SlowIntervalLive
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
}

// fastCycle performs one fast-loop iteration and returns the detected state
// so the caller can choose the next sleep.
func (o *Orchestrator) fastCycle(ctx context.Context) State {
	if err := o.batches.InsertEvent(ctx, refreshlog.PathFast); err != nil {
		o.logger.WarnContext(ctx, "heartbeat write failed", "path", refreshlog.PathFast, "error", err)
	}

	bootstrap, err := o.client.Bootstrap(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "bootstrap refresh failed", "error", err)
		return StateIdle
	}
	if err := o.syncReference(ctx, bootstrap); err != nil {
		o.logger.ErrorContext(ctx, "reference sync failed", "error", err)
	}

	det, err := o.DetectState(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "state detection failed", "error", err)
		return StateIdle
	}
	o.logger.DebugContext(ctx, "fast cycle", "state", string(det.State), "gameweek", det.GameweekID)

	ranBatch := false
	switch det.State {
	case StateLiveMatches, StateBonusPending:
		o.liveCycle(ctx, det)
	case StatePriceWindow:
		o.priceCycle(ctx, det)
	case StateTransferDeadline:
		ranBatch = o.deadlineCycle(ctx, det)
	case StateOutsideGameweek:
		// Nothing to refresh beyond the reference data above.
	default:
		o.idleCycle(ctx, det)
	}

	o.maybeRunPriceCooldown(ctx, det)

	if !ranBatch {
		o.refreshViews(ctx, det.State)
	}

	if err := o.batches.InsertEvent(ctx, refreshlog.PathFast); err != nil {
		o.logger.WarnContext(ctx, "heartbeat write failed", "path", refreshlog.PathFast, "error", err)
	}
	return det.State
}

func (o *Orchestrator) slowCycle(ctx context.Context) State {
	det, err := o.DetectState(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "state detection failed", "error", err)
		return StateIdle
	}

	switch det.State {
	case StateLiveMatches, StateBonusPending:
		cohort, cohortErr := o.trackedCohort(ctx)
		if cohortErr != nil {
			o.logger.ErrorContext(ctx, "cohort resolution failed", "error", cohortErr)
			break
		}
		ok, refreshErr := o.managerSvc.RefreshManagerHistoryCohort(ctx, cohort, det.GameweekID)
		if refreshErr != nil {
			o.logger.ErrorContext(ctx, "cohort history refresh failed", "error", refreshErr)
		}
		if ok {
			if err := o.views.RefreshLive(ctx); err != nil {
				o.logger.WarnContext(ctx, "live view refresh failed", "error", err)
			}
		}
	case StateIdle:
		o.maybeRefreshIdleCohort(ctx, det)
	}

	if det.GameweekID > 0 {
		cohort, cohortErr := o.trackedCohort(ctx)
		if cohortErr == nil {
			if err := o.baselineSvc.CaptureMatchdayBaseline(ctx, cohort, det.GameweekID); err != nil {
				o.logger.WarnContext(ctx, "matchday baseline failed", "error", err)
			}
		}
		o.maybeFinalizeRanks(ctx, det)
	}

	if err := o.batches.InsertEvent(ctx, refreshlog.PathSlow); err != nil {
		o.logger.WarnContext(ctx, "heartbeat write failed", "path", refreshlog.PathSlow, "error", err)
	}
	return det.State
}

// Detection is the result of one state-detection pass.
type Detection struct {
	State      State
	GameweekID int
	Current    gameweek.Gameweek
	HasCurrent bool
	// TargetGameweekID is the gameweek the deadline batch must run for when
	// State is StateTransferDeadline.
	TargetGameweekID int
}

// DetectState classifies the current instant. Priority order matters: price
// window trumps live so price syncs are never starved by a long matchday, and
// a live fixture in the next gameweek adopts that gameweek as current.
func (o *Orchestrator) DetectState(ctx context.Context) (Detection, error) {
	now := o.now().UTC()

	current, hasCurrent, err := o.gameweeks.GetCurrent(ctx)
	if err != nil {
		return Detection{}, fmt.Errorf("load current gameweek: %w", err)
	}
	if !hasCurrent {
		return Detection{State: StateOutsideGameweek}, nil
	}
	det := Detection{GameweekID: current.ID, Current: current, HasCurrent: true}

	if o.inPriceWindow(now) {
		det.State = StatePriceWindow
		return det, nil
	}

	fixtures, err := o.fixtures.ListByGameweek(ctx, current.ID)
	if err != nil {
		return Detection{}, fmt.Errorf("load fixtures gw=%d: %w", current.ID, err)
	}
	if anyInProgress(fixtures, now) {
		det.State = StateLiveMatches
		return det, nil
	}

	next, hasNext, err := o.gameweeks.GetNext(ctx)
	if err != nil {
		return Detection{}, fmt.Errorf("load next gameweek: %w", err)
	}
	if hasNext {
		nextFixtures, nextErr := o.fixtures.ListByGameweek(ctx, next.ID)
		if nextErr != nil {
			return Detection{}, fmt.Errorf("load fixtures gw=%d: %w", next.ID, nextErr)
		}
		if anyInProgress(nextFixtures, now) {
			det.State = StateLiveMatches
			det.GameweekID = next.ID
			return det, nil
		}
	}

	if len(fixtures) > 0 && allFinishedProvisional(fixtures) && !allFinished(fixtures) {
		det.State = StateBonusPending
		return det, nil
	}

	if hasNext && now.Sub(next.DeadlineAt) >= o.cfg.DeadlineLag {
		pending, pendErr := o.deadlinePending(ctx, next.ID, now)
		if pendErr != nil {
			return Detection{}, pendErr
		}
		if pending {
			det.State = StateTransferDeadline
			det.TargetGameweekID = next.ID
			return det, nil
		}
	}
	if now.Sub(current.DeadlineAt) >= o.cfg.DeadlineLag {
		pending, pendErr := o.deadlinePending(ctx, current.ID, now)
		if pendErr != nil {
			return Detection{}, pendErr
		}
		if pending {
			det.State = StateTransferDeadline
			det.TargetGameweekID = current.ID
			return det, nil
		}
	}

	det.State = StateIdle
	return det, nil
}

// deadlinePending reports whether gameweekID still needs its deadline batch:
// no successful run recorded and no fixture kicked off yet.
func (o *Orchestrator) deadlinePending(ctx context.Context, gameweekID int, now time.Time) (bool, error) {
	if o.deadlineBatchDone(gameweekID) {
		return false, nil
	}
	done, err := o.batches.HasSuccessfulBatch(ctx, gameweekID)
	if err != nil {
		return false, fmt.Errorf("check batch gw=%d: %w", gameweekID, err)
	}
	if done {
		o.markDeadlineBatchDone(gameweekID)
		return false, nil
	}
	fixtures, err := o.fixtures.ListByGameweek(ctx, gameweekID)
	if err != nil {
		return false, fmt.Errorf("load fixtures gw=%d: %w", gameweekID, err)
	}
	for _, fx := range fixtures {
		if fx.HasStarted(now) {
			return false, nil
		}
	}
	return true, nil
}

func (o *Orchestrator) deadlineBatchDone(gameweekID int) bool {
	o.deadlineMu.Lock()
	defer o.deadlineMu.Unlock()
	return o.deadlineDone[gameweekID]
}

func (o *Orchestrator) markDeadlineBatchDone(gameweekID int) {
	o.deadlineMu.Lock()
	o.deadlineDone[gameweekID] = true
	o.deadlineMu.Unlock()
}

// liveCycle is the matchday hot path: fixtures and the live payload are
// fetched in parallel, the scoreboard and player stats written, and the
// cohort's standings refreshed on a throttle.
func (o *Orchestrator) liveCycle(ctx context.Context, det Detection) {
	gw := det.GameweekID

	var upstreamFixtures []fplapi.Fixture
	var live fplapi.EventLive

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		upstreamFixtures, err = o.client.Fixtures(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		live, err = o.client.EventLive(ctx, gw)
		return err
	})
	if err := p.Wait(); err != nil {
		o.logger.ErrorContext(ctx, "live fetch failed", "gameweek", gw, "error", err)
		return
	}

	if err := o.upsertFixtures(ctx, upstreamFixtures); err != nil {
		o.logger.ErrorContext(ctx, "fixture upsert failed", "error", err)
	}
	o.updateScoreboard(ctx, gw, upstreamFixtures, live)

	playerIDs, err := o.selectLivePlayers(ctx, gw, live)
	if err != nil {
		o.logger.ErrorContext(ctx, "live player selection failed", "error", err)
		return
	}
	now := o.now()
	if now.Sub(o.lastFullLiveRefreshAt) >= o.cfg.FullRefreshLive {
		// Periodic full sweep over every live element, so corrections to
		// players outside the incremental selection still land.
		o.lastFullLiveRefreshAt = now
		playerIDs = allLiveElementIDs(live)
	}
	if err := o.playerSvc.RefreshPlayerStats(ctx, RefreshPlayerStatsParams{
		Gameweek:  gw,
		PlayerIDs: playerIDs,
		Live:      &live,
		Fixtures:  upstreamFixtures,
		LiveOnly:  true,
	}); err != nil {
		o.logger.ErrorContext(ctx, "live player stats refresh failed", "gameweek", gw, "error", err)
	}

	if now.Sub(o.lastLiveStandingsAt) < o.cfg.LiveStandingsInterval {
		return
	}
	o.lastLiveStandingsAt = now

	cohort, err := o.trackedCohort(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "cohort resolution failed", "error", err)
		return
	}
	ok, err := o.managerSvc.RefreshManagerPointsFromLiveData(ctx, cohort, gw, &live, indexFixtures(upstreamFixtures))
	if err != nil {
		o.logger.ErrorContext(ctx, "live standings refresh failed", "error", err)
		return
	}
	for _, leagueID := range o.cfg.MiniLeagueIDs {
		if err := o.managerSvc.CalculateMiniLeagueRanks(ctx, leagueID, gw); err != nil {
			o.logger.WarnContext(ctx, "mini-league rank recompute failed", "league_id", leagueID, "error", err)
		}
	}
	if !ok {
		// Some managers failed; surfacing a half-updated standing is worse
		// than a stale one.
		o.logger.WarnContext(ctx, "standings aggregate skipped, cohort incomplete", "gameweek", gw)
		return
	}
	if err := o.views.RefreshLive(ctx); err != nil {
		o.logger.WarnContext(ctx, "live view refresh failed", "error", err)
	}
}

// idleCycle keeps fixtures current and drags provisional bonus to confirmed
// once matches wrap up.
func (o *Orchestrator) idleCycle(ctx context.Context, det Detection) {
	upstreamFixtures, err := o.client.Fixtures(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "fixtures refresh failed", "error", err)
		return
	}
	if err := o.upsertFixtures(ctx, upstreamFixtures); err != nil {
		o.logger.ErrorContext(ctx, "fixture upsert failed", "error", err)
		return
	}

	gw := det.GameweekID
	if gw <= 0 || o.bonusCaughtUpGW == gw {
		return
	}
	anyDone := false
	for _, fx := range upstreamFixtures {
		if fx.Event != nil && *fx.Event == gw && (fx.Finished || fx.FinishedProvisional) {
			anyDone = true
			break
		}
	}
	if !anyDone {
		return
	}
	remaining, err := o.playerSvc.CatchUpConfirmedBonus(ctx, gw)
	if err != nil {
		o.logger.WarnContext(ctx, "bonus catch-up failed", "gameweek", gw, "error", err)
		return
	}
	if remaining == 0 {
		o.bonusCaughtUpGW = gw
	}
}

func (o *Orchestrator) priceCycle(ctx context.Context, det Detection) {
	bootstrap, err := o.client.RefreshBootstrap(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "price window bootstrap failed", "error", err)
		return
	}
	if err := o.playerSvc.SyncPlayersFromBootstrap(ctx, bootstrap); err != nil {
		o.logger.ErrorContext(ctx, "price window ownership sync failed", "error", err)
	}
	if det.GameweekID > 0 {
		if err := o.playerSvc.SyncPlayerPricesFromBootstrap(ctx, bootstrap, det.GameweekID); err != nil {
			o.logger.ErrorContext(ctx, "price series sync failed", "error", err)
		}
	}
	o.priceWindowClosedAt = o.now()
	o.priceCooldownDue = true
}

// maybeRunPriceCooldown refreshes the cohort once shortly after the price
// window closes so post-change team values land in history promptly.
func (o *Orchestrator) maybeRunPriceCooldown(ctx context.Context, det Detection) {
	if !o.priceCooldownDue || det.State == StatePriceWindow || det.GameweekID <= 0 {
		return
	}
	if o.now().Sub(o.priceWindowClosedAt) > o.cfg.PriceCooldown {
		o.priceCooldownDue = false
		return
	}
	o.priceCooldownDue = false
	cohort, err := o.trackedCohort(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "cohort resolution failed", "error", err)
		return
	}
	if _, err := o.managerSvc.RefreshManagerHistoryCohort(ctx, cohort, det.GameweekID); err != nil {
		o.logger.WarnContext(ctx, "post-price cohort refresh failed", "error", err)
	}
}

func (o *Orchestrator) maybeRefreshIdleCohort(ctx context.Context, det Detection) {
	now := o.now()
	if now.Sub(o.lastIdleCohortAt) < o.cfg.IdleCohortEvery {
		return
	}
	cohort, err := o.trackedCohort(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "cohort resolution failed", "error", err)
		return
	}
	o.lastIdleCohortAt = now
	if _, err := o.managerSvc.RefreshManagerHistoryCohort(ctx, cohort, det.GameweekID); err != nil {
		o.logger.WarnContext(ctx, "idle cohort refresh failed", "error", err)
	}
}

// maybeFinalizeRanks watches for upstream's post-gameweek rank release: on
// data_checked, or on a sampled manager's rank moving, mark the gameweek
// finalized and refresh the cohort one last time.
func (o *Orchestrator) maybeFinalizeRanks(ctx context.Context, det Detection) {
	if !det.HasCurrent || det.Current.RanksFinalized {
		return
	}
	fixtures, err := o.fixtures.ListByGameweek(ctx, det.Current.ID)
	if err != nil || len(fixtures) == 0 || !allFinishedProvisional(fixtures) {
		return
	}

	finalized := det.Current.DataChecked
	if !finalized {
		now := o.now()
		if last := lastKickoff(fixtures); last != nil && now.Sub(*last) > o.cfg.RankMonitorAfter {
			// Ranks usually land within hours of the last kickoff. Past the
			// window, stop burning upstream calls and wait for data_checked.
			return
		}
		if now.Sub(o.lastRankProbeAt) < o.cfg.RankMonitorInterval {
			return
		}
		o.lastRankProbeAt = now

		cohort, cohortErr := o.trackedCohort(ctx)
		if cohortErr != nil || len(cohort) == 0 {
			return
		}
		changed, probeErr := o.managerSvc.CheckRankChange(ctx, cohort[0], det.Current.ID)
		if probeErr != nil {
			o.logger.WarnContext(ctx, "rank probe failed", "error", probeErr)
			return
		}
		finalized = changed
	}
	if !finalized {
		return
	}

	if err := o.gameweeks.SetRanksFinalized(ctx, det.Current.ID, true); err != nil {
		o.logger.ErrorContext(ctx, "mark ranks finalized failed", "gameweek", det.Current.ID, "error", err)
		return
	}
	o.logger.InfoContext(ctx, "ranks finalized", "gameweek", det.Current.ID)
	cohort, err := o.trackedCohort(ctx)
	if err != nil {
		return
	}
	if _, err := o.managerSvc.RefreshManagerHistoryCohort(ctx, cohort, det.Current.ID); err != nil {
		o.logger.WarnContext(ctx, "final cohort refresh failed", "error", err)
	}
}

func (o *Orchestrator) refreshViews(ctx context.Context, state State) {
	var err error
	switch state {
	case StateLiveMatches, StateBonusPending:
		err = o.views.RefreshLive(ctx)
	case StateIdle:
		err = o.views.RefreshAll(ctx)
	default:
		return
	}
	if err != nil {
		o.logger.WarnContext(ctx, "view refresh failed", "state", string(state), "error", err)
	}
}

// syncReference writes gameweeks, teams and the player pool from a bootstrap
// snapshot. It runs every fast cycle; the bootstrap cache keeps that cheap.
func (o *Orchestrator) syncReference(ctx context.Context, bootstrap fplapi.Bootstrap) error {
	gameweeks := make([]gameweek.Gameweek, 0, len(bootstrap.Events))
	for _, event := range bootstrap.Events {
		gameweeks = append(gameweeks, gameweek.Gameweek{
			ID:          event.ID,
			Name:        event.Name,
			DeadlineAt:  event.DeadlineTime.UTC(),
			ReleaseAt:   event.ReleaseTime,
			IsCurrent:   event.IsCurrent,
			IsNext:      event.IsNext,
			IsPrevious:  event.IsPrevious,
			Finished:    event.Finished,
			DataChecked: event.DataChecked,
		})
	}
	if err := o.gameweeks.UpsertMany(ctx, gameweeks); err != nil {
		return fmt.Errorf("upsert gameweeks: %w", err)
	}
	return o.playerSvc.SyncPlayersFromBootstrap(ctx, bootstrap)
}

func (o *Orchestrator) upsertFixtures(ctx context.Context, items []fplapi.Fixture) error {
	rows := make([]fixture.Fixture, 0, len(items))
	for _, item := range items {
		row := fixture.Fixture{
			ID:                  item.ID,
			HomeTeamID:          item.TeamH,
			AwayTeamID:          item.TeamA,
			KickoffAt:           item.KickoffTime,
			FinishedProvisional: item.FinishedProvisional,
			Finished:            item.Finished,
			Minutes:             item.Minutes,
			HomeScore:           item.TeamHScore,
			AwayScore:           item.TeamAScore,
		}
		if item.Event != nil {
			row.GameweekID = *item.Event
		}
		if item.Started != nil {
			row.Started = *item.Started
		}
		rows = append(rows, row)
	}
	return o.fixtures.UpsertMany(ctx, rows)
}

// updateScoreboard pushes live scores and minutes per fixture. Scores are
// written only when both sides are present so a double-gameweek payload with
// one match pending cannot blank the other. Minutes take the maximum of the
// upstream figure, the highest player minutes seen, and wall-clock elapsed
// capped at 120; the store rejects decreases.
func (o *Orchestrator) updateScoreboard(ctx context.Context, gw int, upstreamFixtures []fplapi.Fixture, live fplapi.EventLive) {
	now := o.now().UTC()
	playerMinutes := maxPlayerMinutesByFixture(live)

	for _, fx := range upstreamFixtures {
		if fx.Event == nil || *fx.Event != gw {
			continue
		}
		if fx.KickoffTime == nil || fx.KickoffTime.After(now) {
			continue
		}

		minutes := fx.Minutes
		if observed := playerMinutes[fx.ID]; observed > minutes {
			minutes = observed
		}
		elapsed := int(now.Sub(*fx.KickoffTime) / time.Minute)
		if elapsed > 120 {
			elapsed = 120
		}
		if !fx.FinishedProvisional && elapsed > minutes {
			minutes = elapsed
		}

		var home, away *int
		if fx.TeamHScore != nil && fx.TeamAScore != nil {
			home, away = fx.TeamHScore, fx.TeamAScore
		}
		if err := o.fixtures.UpdateScore(ctx, fx.ID, home, away, minutes); err != nil {
			o.logger.WarnContext(ctx, "scoreboard update failed", "fixture_id", fx.ID, "error", err)
		}
	}
}

// selectLivePlayers picks which players the live refresh writes: anyone with
// minutes in the payload, anyone who already has a row this gameweek, and
// everyone in a tracked manager's squad.
func (o *Orchestrator) selectLivePlayers(ctx context.Context, gw int, live fplapi.EventLive) ([]int, error) {
	selected := make(map[int]bool)
	for _, element := range live.Elements {
		if element.Stats.Minutes > 0 {
			selected[element.ID] = true
		}
	}

	existing, err := o.stats.ListPlayerIDsWithRows(ctx, gw)
	if err != nil {
		return nil, fmt.Errorf("list players with rows gw=%d: %w", gw, err)
	}
	for _, id := range existing {
		selected[id] = true
	}

	cohort, err := o.trackedCohort(ctx)
	if err != nil {
		return nil, err
	}
	for _, managerID := range cohort {
		picks, picksErr := o.managerSvc.managers.GetPicks(ctx, managerID, gw)
		if picksErr != nil {
			return nil, fmt.Errorf("load picks manager=%d: %w", managerID, picksErr)
		}
		for _, pick := range picks {
			selected[pick.PlayerID] = true
		}
	}

	out := make([]int, 0, len(selected))
	for id := range selected {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// trackedCohort is the union of every mini-league's members and the
// explicitly required manager ids.
func (o *Orchestrator) trackedCohort(ctx context.Context) ([]int, error) {
	members, err := o.leagues.ListTrackedManagerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked managers: %w", err)
	}
	seen := make(map[int]bool, len(members)+len(o.cfg.RequiredManagerIDs))
	out := make([]int, 0, len(members)+len(o.cfg.RequiredManagerIDs))
	for _, id := range members {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range o.cfg.RequiredManagerIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out, nil
}

// fastSleep returns the next fast-loop pause. Idle sleeps are capped so the
// loop wakes at most KickoffWindow before the next kickoff.
func (o *Orchestrator) fastSleep(ctx context.Context, state State) time.Duration {
	switch state {
	case StateTransferDeadline:
		return o.cfg.FastIntervalDeadline
	case StateLiveMatches, StateBonusPending:
		return o.cfg.FastIntervalLive
	case StatePriceWindow:
		return o.cfg.FastIntervalPrice
	}

	sleep := o.cfg.MaxIdleSleep
	now := o.now().UTC()
	if next, err := o.fixtures.NextKickoffAfter(ctx, now); err == nil && next != nil {
		untilWindow := next.Sub(now) - o.cfg.KickoffWindow
		if untilWindow < sleep {
			sleep = untilWindow
		}
	}
	if sleep < time.Second {
		sleep = time.Second
	}
	return sleep
}

// inPriceWindow checks the configured daily wall-clock window in the local
// zone; everything else in the process runs on UTC.
func (o *Orchestrator) inPriceWindow(now time.Time) bool {
	local := now.In(o.cfg.Location)
	start, err := time.ParseInLocation("15:04", o.cfg.PriceWindowStart, o.cfg.Location)
	if err != nil {
		return false
	}
	windowStart := time.Date(local.Year(), local.Month(), local.Day(),
		start.Hour(), start.Minute(), 0, 0, o.cfg.Location)
	windowEnd := windowStart.Add(o.cfg.PriceWindowDuration)
	return !local.Before(windowStart) && local.Before(windowEnd)
}

func anyInProgress(fixtures []fixture.Fixture, now time.Time) bool {
	for _, fx := range fixtures {
		if fx.InProgress(now) {
			return true
		}
	}
	return false
}

func allFinishedProvisional(fixtures []fixture.Fixture) bool {
	for _, fx := range fixtures {
		if !fx.FinishedProvisional {
			return false
		}
	}
	return len(fixtures) > 0
}

func lastKickoff(fixtures []fixture.Fixture) *time.Time {
	var last *time.Time
	for _, fx := range fixtures {
		if fx.KickoffAt == nil {
			continue
		}
		if last == nil || fx.KickoffAt.After(*last) {
			last = fx.KickoffAt
		}
	}
	return last
}

func allLiveElementIDs(live fplapi.EventLive) []int {
	out := make([]int, 0, len(live.Elements))
	for _, element := range live.Elements {
		out = append(out, element.ID)
	}
	sort.Ints(out)
	return out
}

func allFinished(fixtures []fixture.Fixture) bool {
	for _, fx := range fixtures {
		if !fx.Finished {
			return false
		}
	}
	return true
}

func maxPlayerMinutesByFixture(live fplapi.EventLive) map[int]int {
	out := make(map[int]int)
	for _, element := range live.Elements {
		for _, explain := range element.Explain {
			for _, entry := range explain.Stats {
				if entry.Identifier == "minutes" && entry.Value > out[explain.Fixture] {
					out[explain.Fixture] = entry.Value
				}
			}
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
