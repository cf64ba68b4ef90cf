package baseline

import "time"

// MatchdayBaseline snapshots a manager's ranks shortly before the first
// kickoff of a matchday, so intra-matchday deltas have a stable reference.
// Sequence 1 is also written at gameweek-baseline time.
type MatchdayBaseline struct {
	ManagerID            int
	GameweekID           int
	MatchdaySequence     int
	MatchdayDate         time.Time
	FirstKickoffAt       time.Time
	OverallRankBaseline  *int
	GameweekRankBaseline *int
}
