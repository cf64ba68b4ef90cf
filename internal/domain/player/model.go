package player

import "time"

const (
	PositionGoalkeeper = "GK"
	PositionDefender   = "DEF"
	PositionMidfielder = "MID"
	PositionForward    = "FWD"
)

// PositionFromElementType maps the upstream element_type (1..4) to a position
// code. Unknown types map to empty.
func PositionFromElementType(elementType int) string {
	switch elementType {
	case 1:
		return PositionGoalkeeper
	case 2:
		return PositionDefender
	case 3:
		return PositionMidfielder
	case 4:
		return PositionForward
	default:
		return ""
	}
}

type Player struct {
	ID                int
	TeamID            int
	Position          string
	WebName           string
	CostTenths        int
	SelectedByPercent float64
}

// Price is one point in the per-gameweek price series.
type Price struct {
	PlayerID   int
	GameweekID int
	CostTenths int
	RecordedAt time.Time
}
