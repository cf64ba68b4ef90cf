package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/riskibarqy/fpl-mirror/internal/domain/baseline"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

const (
	defaultMatchdayWindowBefore = 90 * time.Minute
	defaultMatchdayWindowStop   = 5 * time.Minute
)

// BaselineService captures the two reference snapshots deltas are measured
// against: the per-gameweek totals baseline right after the deadline, and the
// per-matchday rank baseline shortly before each day's first kickoff.
type BaselineService struct {
	managers  manager.Repository
	fixtures  fixture.Repository
	baselines baseline.Repository
	logger    *logging.Logger

	windowBefore time.Duration
	windowStop   time.Duration
	now          func() time.Time
}

func NewBaselineService(
	managers manager.Repository,
	fixtures fixture.Repository,
	baselines baseline.Repository,
	logger *logging.Logger,
) *BaselineService {
	if logger == nil {
		logger = logging.Default()
	}
	return &BaselineService{
		managers:     managers,
		fixtures:     fixtures,
		baselines:    baselines,
		logger:       logger,
		windowBefore: defaultMatchdayWindowBefore,
		windowStop:   defaultMatchdayWindowStop,
		now:          time.Now,
	}
}

// CaptureGameweekBaseline anchors every manager's baseline_total_points and
// previous ranks on the prior gameweek's row. Once any fixture of the
// gameweek has kicked off the reference would be wrong, so the capture is
// skipped entirely rather than captured late. The store keeps the first
// written baseline, so re-runs are harmless.
func (s *BaselineService) CaptureGameweekBaseline(ctx context.Context, managerIDs []int, gameweek int) error {
	ctx, span := startUsecaseSpan(ctx, "BaselineService.CaptureGameweekBaseline")
	defer span.End()

	if gameweek <= 0 {
		return fmt.Errorf("%w: gameweek is required", ErrInvalidInput)
	}

	fixtures, err := s.fixtures.ListByGameweek(ctx, gameweek)
	if err != nil {
		return fmt.Errorf("load fixtures gw=%d: %w", gameweek, err)
	}
	now := s.now().UTC()
	for _, fx := range fixtures {
		if fx.HasStarted(now) {
			s.logger.WarnContext(ctx, "gameweek baseline skipped, fixture already started",
				"gameweek", gameweek, "fixture_id", fx.ID)
			return nil
		}
	}

	for _, managerID := range managerIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		previous, found, err := s.managers.GetHistory(ctx, managerID, gameweek-1)
		if err != nil {
			return fmt.Errorf("load previous history manager=%d: %w", managerID, err)
		}
		if !found {
			s.logger.DebugContext(ctx, "no previous history, baseline starts at zero",
				"manager_id", managerID, "gameweek", gameweek)
		}
		if err := s.managers.SetBaseline(ctx, managerID, gameweek,
			previous.TotalPoints, previous.OverallRank, previous.MiniLeagueRank); err != nil {
			return fmt.Errorf("set baseline manager=%d gw=%d: %w", managerID, gameweek, err)
		}
	}

	// The gameweek baseline doubles as matchday sequence 1.
	if first := earliestKickoff(fixtures); first != nil {
		if err := s.snapshotMatchday(ctx, managerIDs, gameweek, 1, *first); err != nil {
			return err
		}
	}
	return nil
}

// CaptureMatchdayBaseline snapshots current ranks when now falls inside a
// matchday's capture window. Outside every window it is a no-op, so the slow
// loop can call it unconditionally.
func (s *BaselineService) CaptureMatchdayBaseline(ctx context.Context, managerIDs []int, gameweek int) error {
	ctx, span := startUsecaseSpan(ctx, "BaselineService.CaptureMatchdayBaseline")
	defer span.End()

	fixtures, err := s.fixtures.ListByGameweek(ctx, gameweek)
	if err != nil {
		return fmt.Errorf("load fixtures gw=%d: %w", gameweek, err)
	}

	now := s.now().UTC()
	for sequence, firstKickoff := range matchdayKickoffs(fixtures) {
		opensAt := firstKickoff.Add(-s.windowBefore)
		closesAt := firstKickoff.Add(-s.windowStop)
		if now.Before(opensAt) || now.After(closesAt) {
			continue
		}
		return s.snapshotMatchday(ctx, managerIDs, gameweek, sequence, firstKickoff)
	}
	return nil
}

func (s *BaselineService) snapshotMatchday(ctx context.Context, managerIDs []int, gameweek, sequence int, firstKickoff time.Time) error {
	exists, err := s.baselines.Exists(ctx, gameweek, sequence)
	if err != nil {
		return fmt.Errorf("check matchday baseline gw=%d seq=%d: %w", gameweek, sequence, err)
	}
	if exists {
		return nil
	}

	rows := make([]baseline.MatchdayBaseline, 0, len(managerIDs))
	matchdayDate := firstKickoff.Truncate(24 * time.Hour)
	for _, managerID := range managerIDs {
		history, found, err := s.managers.GetHistory(ctx, managerID, gameweek)
		if err != nil {
			return fmt.Errorf("load history manager=%d gw=%d: %w", managerID, gameweek, err)
		}
		row := baseline.MatchdayBaseline{
			ManagerID:        managerID,
			GameweekID:       gameweek,
			MatchdaySequence: sequence,
			MatchdayDate:     matchdayDate,
			FirstKickoffAt:   firstKickoff,
		}
		if found {
			row.OverallRankBaseline = history.OverallRank
			row.GameweekRankBaseline = history.GameweekRank
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	if err := s.baselines.UpsertMany(ctx, rows); err != nil {
		return fmt.Errorf("write matchday baseline gw=%d seq=%d: %w", gameweek, sequence, err)
	}
	s.logger.InfoContext(ctx, "matchday baseline captured",
		"gameweek", gameweek, "sequence", sequence, "managers", len(rows))
	return nil
}

// matchdayKickoffs groups the gameweek's fixtures by UTC calendar day and
// returns each day's earliest kickoff keyed by 1-based sequence.
func matchdayKickoffs(fixtures []fixture.Fixture) map[int]time.Time {
	firstByDay := make(map[string]time.Time)
	for _, fx := range fixtures {
		if fx.KickoffAt == nil {
			continue
		}
		kickoff := fx.KickoffAt.UTC()
		day := kickoff.Format("2006-01-02")
		if current, ok := firstByDay[day]; !ok || kickoff.Before(current) {
			firstByDay[day] = kickoff
		}
	}

	days := make([]string, 0, len(firstByDay))
	for day := range firstByDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make(map[int]time.Time, len(days))
	for idx, day := range days {
		out[idx+1] = firstByDay[day]
	}
	return out
}

func earliestKickoff(fixtures []fixture.Fixture) *time.Time {
	var first *time.Time
	for _, fx := range fixtures {
		if fx.KickoffAt == nil {
			continue
		}
		kickoff := fx.KickoffAt.UTC()
		if first == nil || kickoff.Before(*first) {
			first = &kickoff
		}
	}
	return first
}
