package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-mirror/internal/domain/baseline"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

type stubBaselineRepo struct {
	rows     []baseline.MatchdayBaseline
	existing map[[2]int]bool
}

var _ baseline.Repository = (*stubBaselineRepo)(nil)

func newStubBaselineRepo() *stubBaselineRepo {
	return &stubBaselineRepo{existing: make(map[[2]int]bool)}
}

func (s *stubBaselineRepo) UpsertMany(_ context.Context, items []baseline.MatchdayBaseline) error {
	s.rows = append(s.rows, items...)
	for _, item := range items {
		s.existing[[2]int{item.GameweekID, item.MatchdaySequence}] = true
	}
	return nil
}

func (s *stubBaselineRepo) Exists(_ context.Context, gameweekID, sequence int) (bool, error) {
	return s.existing[[2]int{gameweekID, sequence}], nil
}

func newBaselineFixture(managers *stubManagerRepo, fixtures *stubFixtureRepo, baselines *stubBaselineRepo, now time.Time) *BaselineService {
	svc := NewBaselineService(managers, fixtures, baselines, logging.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestBaselineService_GameweekBaselineAnchorsOnPreviousRow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 9, 13, 10, 0, 0, 0, time.UTC)
	kickoff := now.Add(3 * time.Hour)

	managers := newStubManagerRepo()
	managers.histories[historyKey{1, 4}] = manager.History{
		ManagerID: 1, GameweekID: 4, TotalPoints: 250,
		OverallRank: intPtr(120000), MiniLeagueRank: intPtr(3),
	}

	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{{ID: 9, GameweekID: 5, KickoffAt: &kickoff}}}
	baselines := newStubBaselineRepo()
	svc := newBaselineFixture(managers, fixtures, baselines, now)

	if err := svc.CaptureGameweekBaseline(context.Background(), []int{1}, 5); err != nil {
		t.Fatalf("CaptureGameweekBaseline: %v", err)
	}

	row := managers.histories[historyKey{1, 5}]
	if row.BaselineTotalPoints == nil || *row.BaselineTotalPoints != 250 {
		t.Fatalf("baseline total not anchored: %+v", row.BaselineTotalPoints)
	}
	if row.PreviousOverallRank == nil || *row.PreviousOverallRank != 120000 {
		t.Fatalf("previous overall rank not captured: %+v", row.PreviousOverallRank)
	}
	if row.PreviousMiniLeagueRank == nil || *row.PreviousMiniLeagueRank != 3 {
		t.Fatalf("previous mini-league rank not captured: %+v", row.PreviousMiniLeagueRank)
	}
	if len(baselines.rows) != 1 || baselines.rows[0].MatchdaySequence != 1 {
		t.Fatalf("matchday sequence 1 must be written alongside: %+v", baselines.rows)
	}
}

func TestBaselineService_GameweekBaselineSkippedAfterKickoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 9, 13, 16, 0, 0, 0, time.UTC)
	kickoff := now.Add(-time.Hour)

	managers := newStubManagerRepo()
	managers.histories[historyKey{1, 4}] = manager.History{ManagerID: 1, GameweekID: 4, TotalPoints: 250}

	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{{ID: 9, GameweekID: 5, KickoffAt: &kickoff}}}
	svc := newBaselineFixture(managers, fixtures, newStubBaselineRepo(), now)

	if err := svc.CaptureGameweekBaseline(context.Background(), []int{1}, 5); err != nil {
		t.Fatalf("CaptureGameweekBaseline: %v", err)
	}
	if _, ok := managers.histories[historyKey{1, 5}]; ok {
		t.Fatalf("baseline must not be captured after a fixture started")
	}
}

func TestBaselineService_GameweekBaselineIsWriteOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 9, 13, 10, 0, 0, 0, time.UTC)
	kickoff := now.Add(3 * time.Hour)

	managers := newStubManagerRepo()
	managers.histories[historyKey{1, 4}] = manager.History{ManagerID: 1, GameweekID: 4, TotalPoints: 250}
	managers.histories[historyKey{1, 5}] = manager.History{
		ManagerID: 1, GameweekID: 5, BaselineTotalPoints: intPtr(240),
	}

	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{{ID: 9, GameweekID: 5, KickoffAt: &kickoff}}}
	svc := newBaselineFixture(managers, fixtures, newStubBaselineRepo(), now)

	if err := svc.CaptureGameweekBaseline(context.Background(), []int{1}, 5); err != nil {
		t.Fatalf("CaptureGameweekBaseline: %v", err)
	}
	if got := managers.histories[historyKey{1, 5}].BaselineTotalPoints; got == nil || *got != 240 {
		t.Fatalf("existing baseline must not be overwritten: %+v", got)
	}
}

func TestBaselineService_MatchdayBaselineOnlyInsideWindow(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 9, 13, 15, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 9, 14, 14, 0, 0, 0, time.UTC)
	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{
		{ID: 1, GameweekID: 5, KickoffAt: &day1},
		{ID: 2, GameweekID: 5, KickoffAt: &day2},
	}}

	managers := newStubManagerRepo()
	managers.histories[historyKey{1, 5}] = manager.History{
		ManagerID: 1, GameweekID: 5, OverallRank: intPtr(99000), GameweekRank: intPtr(410),
	}

	// 30 minutes before day 2's kickoff: inside [kickoff−90m, kickoff−5m].
	baselines := newStubBaselineRepo()
	svc := newBaselineFixture(managers, fixtures, baselines, day2.Add(-30*time.Minute))
	if err := svc.CaptureMatchdayBaseline(context.Background(), []int{1}, 5); err != nil {
		t.Fatalf("CaptureMatchdayBaseline: %v", err)
	}
	if len(baselines.rows) != 1 {
		t.Fatalf("expected one snapshot, got %+v", baselines.rows)
	}
	row := baselines.rows[0]
	if row.MatchdaySequence != 2 || !row.FirstKickoffAt.Equal(day2) {
		t.Fatalf("wrong matchday resolved: %+v", row)
	}
	if row.OverallRankBaseline == nil || *row.OverallRankBaseline != 99000 {
		t.Fatalf("overall rank not snapshotted: %+v", row)
	}

	// Two minutes before kickoff: past the window's close.
	late := newStubBaselineRepo()
	svc = newBaselineFixture(managers, fixtures, late, day2.Add(-2*time.Minute))
	if err := svc.CaptureMatchdayBaseline(context.Background(), []int{1}, 5); err != nil {
		t.Fatalf("CaptureMatchdayBaseline: %v", err)
	}
	if len(late.rows) != 0 {
		t.Fatalf("snapshot must not happen outside the window: %+v", late.rows)
	}
}

func TestBaselineService_MatchdayBaselineIdempotent(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 9, 13, 15, 0, 0, 0, time.UTC)
	fixtures := &stubFixtureRepo{fixtures: []fixture.Fixture{{ID: 1, GameweekID: 5, KickoffAt: &day1}}}

	baselines := newStubBaselineRepo()
	baselines.existing[[2]int{5, 1}] = true

	svc := newBaselineFixture(newStubManagerRepo(), fixtures, baselines, day1.Add(-time.Hour))
	if err := svc.CaptureMatchdayBaseline(context.Background(), []int{1}, 5); err != nil {
		t.Fatalf("CaptureMatchdayBaseline: %v", err)
	}
	if len(baselines.rows) != 0 {
		t.Fatalf("existing sequence must not be rewritten: %+v", baselines.rows)
	}
}
