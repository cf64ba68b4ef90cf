package fixture

import "time"

// Fixture is one scheduled match. GameweekID is zero while the upstream has
// not yet assigned the fixture to an event. Minutes are monotonically
// non-decreasing once the match starts; the store enforces that.
type Fixture struct {
	ID                  int
	GameweekID          int
	HomeTeamID          int
	AwayTeamID          int
	KickoffAt           *time.Time
	Started             bool
	FinishedProvisional bool
	Finished            bool
	Minutes             int
	HomeScore           *int
	AwayScore           *int
}

// InProgress reports whether the match should be treated as live: kickoff has
// passed and the provisional-final whistle has not. The upstream's started
// flag lags kickoff by a few minutes, so it is deliberately ignored here.
func (f Fixture) InProgress(now time.Time) bool {
	if f.KickoffAt == nil || f.FinishedProvisional {
		return false
	}
	return !f.KickoffAt.After(now)
}

// HasStarted reports whether kickoff has passed, by upstream flag or clock.
func (f Fixture) HasStarted(now time.Time) bool {
	if f.Started {
		return true
	}
	return f.KickoffAt != nil && !f.KickoffAt.After(now)
}
