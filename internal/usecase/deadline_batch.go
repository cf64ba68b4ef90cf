package usecase

import (
	"context"
	"fmt"
	"time"
)

const (
	deadlineSuccessThreshold = 0.8
	bootstrapCheckRetryWait  = 30 * time.Second
	maxSettleSleep           = time.Minute
	releaseWaitCap           = time.Hour
	releasePollAttempts      = 30
	releasePollInterval      = time.Minute
)

// deadlineCycle runs inside the fast loop while the state machine reports
// TRANSFER_DEADLINE. The batch itself only fires once the target gameweek is
// the upstream current one; until then the cycle just keeps fixtures warm.
// Returns true when a batch actually ran.
func (o *Orchestrator) deadlineCycle(ctx context.Context, det Detection) bool {
	target := det.TargetGameweekID
	if target <= 0 {
		return false
	}
	if det.GameweekID != target {
		o.logger.InfoContext(ctx, "deadline passed, waiting for gameweek rollover",
			"current_gameweek", det.GameweekID, "target_gameweek", target)
		o.idleCycle(ctx, det)
		return false
	}

	if err := o.runDeadlineBatch(ctx, target); err != nil {
		o.logger.ErrorContext(ctx, "deadline batch failed", "gameweek", target, "error", err)
		return true
	}
	o.markDeadlineBatchDone(target)
	return true
}

// runDeadlineBatch executes the nine post-deadline phases sequentially,
// timing each one into the batch-run record. Phases 1-4 abort the batch;
// later phases log and continue so a flaky aggregate refresh cannot undo
// hours of picks work. Every write is idempotent, so a crashed batch reruns
// cleanly on the next cycle.
func (o *Orchestrator) runDeadlineBatch(ctx context.Context, gw int) error {
	runID, err := o.batches.StartBatchRun(ctx, gw)
	if err != nil {
		return fmt.Errorf("start batch run gw=%d: %w", gw, err)
	}

	phases := make(map[string]time.Duration)
	fail := func(reason string, cause error) error {
		if finishErr := o.batches.FinishBatchRun(ctx, runID, false, reason, phases); finishErr != nil {
			o.logger.ErrorContext(ctx, "batch failure record failed", "error", finishErr)
		}
		if cause != nil {
			return fmt.Errorf("deadline batch gw=%d %s: %w", gw, reason, cause)
		}
		return fmt.Errorf("deadline batch gw=%d: %s", gw, reason)
	}
	timePhase := func(name string, started time.Time) {
		phases[name] = time.Since(started)
	}

	o.logger.InfoContext(ctx, "deadline batch starting", "gameweek", gw, "run_id", runID)

	// Phase 1: prove upstream is reachable before committing to the batch.
	phase := time.Now()
	bootstrap, err := o.client.RefreshBootstrap(ctx)
	if err != nil {
		o.logger.WarnContext(ctx, "bootstrap check retrying", "error", err)
		if sleepErr := sleepCtx(ctx, bootstrapCheckRetryWait); sleepErr != nil {
			return fail("bootstrap_failed", sleepErr)
		}
		if bootstrap, err = o.client.RefreshBootstrap(ctx); err != nil {
			timePhase("bootstrap_check", phase)
			return fail("bootstrap_failed", err)
		}
	}
	timePhase("bootstrap_check", phase)

	// Phase 2: let the transfers endpoint catch up with the deadline.
	phase = time.Now()
	settle := o.cfg.PostDeadlineSettle
	if settle > maxSettleSleep {
		settle = maxSettleSleep
	}
	if settle > 0 {
		if err := sleepCtx(ctx, settle); err != nil {
			return fail("cancelled", err)
		}
	}
	timePhase("settle", phase)

	// Phase 3: picks and transfers for the whole cohort.
	phase = time.Now()
	for _, leagueID := range o.cfg.MiniLeagueIDs {
		if _, err := o.managerSvc.SyncMiniLeague(ctx, leagueID); err != nil {
			o.logger.WarnContext(ctx, "league sync failed", "league_id", leagueID, "error", err)
		}
	}
	cohort, err := o.trackedCohort(ctx)
	if err != nil {
		timePhase("picks_transfers", phase)
		return fail("cohort_failed", err)
	}
	picksMeta, succeeded, err := o.managerSvc.RefreshPicksAndTransfersCohort(ctx, cohort, gw, &bootstrap)
	timePhase("picks_transfers", phase)
	if err != nil {
		return fail("picks_transfers_failed", err)
	}
	if len(cohort) > 0 && float64(succeeded) < deadlineSuccessThreshold*float64(len(cohort)) {
		return fail(fmt.Sprintf("picks_success_rate_below_threshold: %d/%d", succeeded, len(cohort)), nil)
	}

	// Phase 4: if a match kicked off while we worked, the live path owns
	// points now; seeding would zero them.
	phase = time.Now()
	now := o.now().UTC()
	fixtures, err := o.fixtures.ListByGameweek(ctx, gw)
	if err != nil {
		timePhase("kickoff_guard", phase)
		return fail("kickoff_guard_failed", err)
	}
	for _, fx := range fixtures {
		if fx.HasStarted(now) {
			timePhase("kickoff_guard", phase)
			return fail("fixture_already_started", nil)
		}
	}
	timePhase("kickoff_guard", phase)

	// Phase 5: seed history rows and the deadline-time league ordering.
	phase = time.Now()
	if err := o.managerSvc.SeedHistoryFromPrevious(ctx, cohort, gw, picksMeta); err != nil {
		timePhase("seed_history", phase)
		return fail("seed_history_failed", err)
	}
	for _, leagueID := range o.cfg.MiniLeagueIDs {
		if err := o.managerSvc.CalculateMiniLeagueRanks(ctx, leagueID, gw); err != nil {
			o.logger.WarnContext(ctx, "mini-league rank seed failed", "league_id", leagueID, "error", err)
		}
	}
	timePhase("seed_history", phase)

	// Phase 6: capture the gameweek baseline.
	phase = time.Now()
	if err := o.baselineSvc.CaptureGameweekBaseline(ctx, cohort, gw); err != nil {
		o.logger.ErrorContext(ctx, "gameweek baseline failed", "gameweek", gw, "error", err)
	}
	timePhase("baselines", phase)

	// Phase 7: per-league owned-player whitelist.
	phase = time.Now()
	if err := o.refreshPlayerWhitelists(ctx, gw); err != nil {
		o.logger.ErrorContext(ctx, "whitelist refresh failed", "gameweek", gw, "error", err)
	}
	timePhase("whitelist", phase)

	// Phase 8: rebuild every derived view.
	phase = time.Now()
	if err := o.views.RefreshAll(ctx); err != nil {
		o.logger.ErrorContext(ctx, "aggregate refresh failed", "error", err)
	}
	timePhase("aggregates", phase)

	// Phase 9: record success.
	if err := o.batches.FinishBatchRun(ctx, runID, true, "", phases); err != nil {
		return fmt.Errorf("finish batch run gw=%d: %w", gw, err)
	}
	o.logger.InfoContext(ctx, "deadline batch complete",
		"gameweek", gw, "run_id", runID, "cohort", len(cohort), "succeeded", succeeded)

	o.awaitGameweekRelease(ctx, gw)
	return nil
}

// refreshPlayerWhitelists stores, per league, the set of players owned by at
// least one member this gameweek.
func (o *Orchestrator) refreshPlayerWhitelists(ctx context.Context, gw int) error {
	for _, leagueID := range o.cfg.MiniLeagueIDs {
		memberIDs, err := o.leagues.ListMemberIDs(ctx, leagueID)
		if err != nil {
			return fmt.Errorf("list members league=%d: %w", leagueID, err)
		}

		owned := make(map[int]bool)
		for _, managerID := range memberIDs {
			picks, picksErr := o.managerSvc.managers.GetPicks(ctx, managerID, gw)
			if picksErr != nil {
				return fmt.Errorf("load picks manager=%d: %w", managerID, picksErr)
			}
			for _, pick := range picks {
				owned[pick.PlayerID] = true
			}
		}

		playerIDs := make([]int, 0, len(owned))
		for id := range owned {
			playerIDs = append(playerIDs, id)
		}
		if err := o.leagues.ReplacePlayerWhitelist(ctx, leagueID, gw, playerIDs); err != nil {
			return fmt.Errorf("replace whitelist league=%d: %w", leagueID, err)
		}
	}
	return nil
}

// awaitGameweekRelease blocks until upstream reports the target gameweek as
// current: sleep to release_at when it is known (capped, it is only a hint),
// then poll bootstrap. Best-effort; the next fast cycle re-detects state
// regardless of how this exits.
func (o *Orchestrator) awaitGameweekRelease(ctx context.Context, gw int) {
	target, found, err := o.gameweeks.GetByID(ctx, gw)
	if err == nil && found && target.IsCurrent {
		return
	}

	if err == nil && found && target.ReleaseAt != nil {
		wait := time.Until(*target.ReleaseAt)
		if wait > releaseWaitCap {
			wait = releaseWaitCap
		}
		if wait > 0 {
			o.logger.InfoContext(ctx, "waiting for gameweek release",
				"gameweek", gw, "release_at", target.ReleaseAt)
			if sleepCtx(ctx, wait) != nil {
				return
			}
		}
	}

	for attempt := 0; attempt < releasePollAttempts; attempt++ {
		bootstrap, pollErr := o.client.RefreshBootstrap(ctx)
		if pollErr == nil {
			for _, event := range bootstrap.Events {
				if event.ID == gw && event.IsCurrent {
					o.logger.InfoContext(ctx, "gameweek released", "gameweek", gw)
					return
				}
			}
		} else {
			o.logger.WarnContext(ctx, "release poll failed", "gameweek", gw, "error", pollErr)
		}
		if sleepCtx(ctx, releasePollInterval) != nil {
			return
		}
	}
	o.logger.WarnContext(ctx, "gameweek release not observed, resuming loops", "gameweek", gw)
}
