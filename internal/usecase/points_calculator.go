package usecase

import (
	"sort"

	"github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	"github.com/riskibarqy/fpl-mirror/internal/domain/player"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
)

// PlayerAggregate is a player's per-gameweek total across however many
// fixtures they played, summed exactly once so a double gameweek is never
// double-counted against a pick.
type PlayerAggregate struct {
	Points          int
	Minutes         int
	AllFixturesDone bool
}

// AutoSub is one resolved automatic substitution.
type AutoSub struct {
	OutPlayerID int
	InPlayerID  int
}

// GameweekScoreInput carries everything needed to score one manager.
type GameweekScoreInput struct {
	Picks        []manager.Pick
	Aggregates   map[int]PlayerAggregate
	AutoSubs     []AutoSub
	ActiveChip   string
	TransferCost int
}

// PointsCalculator derives a manager's gameweek score from picks, live
// player stats, chips, transfer cost and automatic substitutions. All
// methods are pure.
type PointsCalculator struct{}

// ProvisionalBonusByRow synthesizes 3/2/1 bonus for rows whose fixture has a
// provisional final whistle but no confirmed bonus yet. Players in each
// fixture are ranked by BPS; tied players share the better rank and the next
// distinct rank equals position-in-sort, so BPS [35,30,30,25] earns 3/2/2/0.
// The key is (playerID, fixtureID).
func (PointsCalculator) ProvisionalBonusByRow(rows []playerstats.Stats) map[[2]int]int {
	byFixture := make(map[int][]playerstats.Stats)
	for _, row := range rows {
		if !row.MatchFinished && !row.MatchFinishedProvisional {
			continue
		}
		byFixture[row.FixtureID] = append(byFixture[row.FixtureID], row)
	}

	out := make(map[[2]int]int)
	for fixtureID, group := range byFixture {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].BPS != group[j].BPS {
				return group[i].BPS > group[j].BPS
			}
			return group[i].PlayerID < group[j].PlayerID
		})

		rank := 0
		for idx, row := range group {
			if idx == 0 || row.BPS != group[idx-1].BPS {
				rank = idx + 1
			}
			if row.BonusStatus != playerstats.BonusProvisional || row.Bonus != 0 {
				continue
			}
			bonus := bonusForRank(rank)
			if bonus > 0 {
				out[[2]int{row.PlayerID, fixtureID}] = bonus
			}
		}
	}
	return out
}

func bonusForRank(rank int) int {
	switch rank {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	default:
		return 0
	}
}

// AggregatePlayers folds per-fixture rows into per-player totals. Synthesized
// provisional bonus is added on top of upstream total_points; once the bonus
// is confirmed the upstream total already includes it and nothing is added.
func (c PointsCalculator) AggregatePlayers(rows []playerstats.Stats) map[int]PlayerAggregate {
	bonusByRow := c.ProvisionalBonusByRow(rows)

	out := make(map[int]PlayerAggregate)
	seen := make(map[int]bool)
	for _, row := range rows {
		agg := out[row.PlayerID]
		agg.Points += row.TotalPoints + bonusByRow[[2]int{row.PlayerID, row.FixtureID}]
		agg.Minutes += row.Minutes
		done := row.MatchFinished || row.MatchFinishedProvisional
		if !seen[row.PlayerID] {
			agg.AllFixturesDone = done
			seen[row.PlayerID] = true
		} else {
			agg.AllFixturesDone = agg.AllFixturesDone && done
		}
		out[row.PlayerID] = agg
	}
	return out
}

// InferAutoSubs reproduces the upstream substitution rules when the picks
// payload omits automatic_subs: each starter with zero minutes in a finished
// fixture is replaced by the first unused bench player (in bench order) who
// played and is position-compatible. A goalkeeper is only ever replaced by a
// goalkeeper; any outfield starter by any outfield bench player. Players
// whose fixture status is unknown are left alone.
func (PointsCalculator) InferAutoSubs(picks []manager.Pick, aggregates map[int]PlayerAggregate, positions map[int]string) []AutoSub {
	sorted := append([]manager.Pick(nil), picks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	var bench []manager.Pick
	for _, pick := range sorted {
		if pick.IsBench() {
			bench = append(bench, pick)
		}
	}

	used := make(map[int]bool)
	var subs []AutoSub
	for _, pick := range sorted {
		if pick.IsBench() {
			continue
		}
		agg, ok := aggregates[pick.PlayerID]
		if !ok || !agg.AllFixturesDone || agg.Minutes > 0 {
			continue
		}

		starterIsKeeper := positions[pick.PlayerID] == player.PositionGoalkeeper
		for _, candidate := range bench {
			if used[candidate.PlayerID] {
				continue
			}
			candAgg, ok := aggregates[candidate.PlayerID]
			if !ok || !candAgg.AllFixturesDone || candAgg.Minutes == 0 {
				continue
			}
			candIsKeeper := positions[candidate.PlayerID] == player.PositionGoalkeeper
			if starterIsKeeper != candIsKeeper {
				continue
			}
			used[candidate.PlayerID] = true
			subs = append(subs, AutoSub{OutPlayerID: pick.PlayerID, InPlayerID: candidate.PlayerID})
			break
		}
	}
	return subs
}

// EffectiveMultiplier normalizes a pick's multiplier: a captain stuck at 1
// becomes 2, or 3 under the triple-captain chip.
func (PointsCalculator) EffectiveMultiplier(pick manager.Pick, activeChip string) int {
	multiplier := pick.Multiplier
	if pick.IsCaptain && multiplier == 1 {
		multiplier = manager.CaptainBoost
		if activeChip == manager.ChipTripleCaptain {
			multiplier = manager.TripleBoost
		}
	}
	return multiplier
}

// GameweekPoints returns (final, raw) points for one manager. Final floors at
// zero after the transfer cost is subtracted.
func (c PointsCalculator) GameweekPoints(in GameweekScoreInput) (int, int) {
	autoSubs := in.AutoSubs
	if in.ActiveChip == manager.ChipBenchBoost {
		// All four bench players score under bench boost; no subs apply.
		autoSubs = nil
	}

	inByOut := make(map[int]int, len(autoSubs))
	subbedIn := make(map[int]bool, len(autoSubs))
	for _, sub := range autoSubs {
		inByOut[sub.OutPlayerID] = sub.InPlayerID
		subbedIn[sub.InPlayerID] = true
	}

	raw := 0
	for _, pick := range in.Picks {
		if pick.IsBench() {
			if in.ActiveChip == manager.ChipBenchBoost {
				raw += in.Aggregates[pick.PlayerID].Points
			}
			continue
		}
		if replacement, ok := inByOut[pick.PlayerID]; ok {
			// The starter retains zero; the replacement scores at base rate.
			raw += in.Aggregates[replacement].Points
			continue
		}
		raw += in.Aggregates[pick.PlayerID].Points * c.EffectiveMultiplier(pick, in.ActiveChip)
	}

	final := raw - in.TransferCost
	if final < 0 {
		final = 0
	}
	return final, raw
}

// ResolveTotalPoints picks the total-points anchor: deadline baseline when
// captured, else the previous gameweek's total, else the gameweek score
// alone.
func (PointsCalculator) ResolveTotalPoints(baselineTotal, previousTotal *int, gameweekPoints int) int {
	switch {
	case baselineTotal != nil:
		return *baselineTotal + gameweekPoints
	case previousTotal != nil:
		return *previousTotal + gameweekPoints
	default:
		return gameweekPoints
	}
}
