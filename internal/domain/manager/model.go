package manager

import "time"

// Chips as the upstream names them.
const (
	ChipNone          = ""
	ChipTripleCaptain = "3xc"
	ChipBenchBoost    = "bboost"
	ChipWildcard      = "wildcard"
	ChipFreeHit       = "freehit"
)

const (
	SquadSize    = 15
	StartingXI   = 11
	BenchFirst   = 12
	CaptainBoost = 2
	TripleBoost  = 3
)

type Manager struct {
	ID        int
	FirstName string
	LastName  string
	TeamName  string
}

// Pick is one of the 15 squad slots for a gameweek. Positions 1..11 are the
// starting XI, 12..15 the bench in substitution priority order. Picks are
// immutable after the deadline except the three auto-sub fields, which are
// derived and may be rewritten.
type Pick struct {
	ManagerID               int
	GameweekID              int
	Position                int
	PlayerID                int
	IsCaptain               bool
	IsVice                  bool
	Multiplier              int
	WasAutoSubbedIn         bool
	WasAutoSubbedOut        bool
	AutoSubReplacedPlayerID *int
}

func (p Pick) IsBench() bool {
	return p.Position >= BenchFirst
}

type Transfer struct {
	ManagerID            int
	GameweekID           int
	PlayerInID           int
	PlayerOutID          int
	PriceInTenths        int
	PriceOutTenths       int
	NetPriceChangeTenths int
	TransferAt           time.Time
}

// History is the per-(manager, gameweek) scoring row. The baseline_* and
// previous_* columns are written once at deadline and never overwritten by
// live refreshes; total_points = baseline_total_points + gameweek_points
// whenever the baseline is set.
type History struct {
	ManagerID              int
	GameweekID             int
	GameweekPoints         int
	TransferCost           int
	TotalPoints            int
	OverallRank            *int
	PreviousOverallRank    *int
	OverallRankChange      *int
	GameweekRank           *int
	MiniLeagueRank         *int
	PreviousMiniLeagueRank *int
	MiniLeagueRankChange   *int
	TeamValueTenths        int
	BankTenths             int
	ActiveChip             string
	TransfersMade          int
	BaselineTotalPoints    *int
}
