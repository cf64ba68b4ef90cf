package playerstats

const (
	BonusProvisional = "provisional"
	BonusConfirmed   = "confirmed"
)

// Stats is one player's line for one fixture of a gameweek. A double
// gameweek produces one row per fixture. Expected/ICT columns are static
// once the fixture finishes and must never be zeroed by a live refresh;
// BonusStatus only moves provisional → confirmed.
type Stats struct {
	PlayerID                 int
	GameweekID               int
	FixtureID                int
	TeamID                   int
	OpponentTeamID           int
	WasHome                  bool
	Minutes                  int
	TotalPoints              int
	BPS                      int
	Bonus                    int
	BonusStatus              string
	Goals                    int
	Assists                  int
	CleanSheets              int
	Saves                    int
	DefensiveContribution    int
	YellowCards              int
	RedCards                 int
	ExpectedGoals            float64
	ExpectedAssists          float64
	ExpectedGoalInvolvements float64
	ExpectedGoalsConceded    float64
	Influence                float64
	Creativity               float64
	Threat                   float64
	ICTIndex                 float64
	MatchFinished            bool
	MatchFinishedProvisional bool
}
