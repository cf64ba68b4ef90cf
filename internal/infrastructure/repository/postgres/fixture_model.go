package postgres

import "database/sql"

type fixtureTableModel struct {
	ID                  int           `db:"id"`
	GameweekID          int           `db:"gameweek_id"`
	HomeTeamID          int           `db:"home_team_id"`
	AwayTeamID          int           `db:"away_team_id"`
	KickoffAt           sql.NullTime  `db:"kickoff_at"`
	Started             bool          `db:"started"`
	FinishedProvisional bool          `db:"finished_provisional"`
	Finished            bool          `db:"finished"`
	Minutes             int           `db:"minutes"`
	HomeScore           sql.NullInt64 `db:"home_score"`
	AwayScore           sql.NullInt64 `db:"away_score"`
}

type fixtureInsertModel struct {
	ID                  int           `db:"id"`
	GameweekID          int           `db:"gameweek_id"`
	HomeTeamID          int           `db:"home_team_id"`
	AwayTeamID          int           `db:"away_team_id"`
	KickoffAt           sql.NullTime  `db:"kickoff_at"`
	Started             bool          `db:"started"`
	FinishedProvisional bool          `db:"finished_provisional"`
	Finished            bool          `db:"finished"`
	Minutes             int           `db:"minutes"`
	HomeScore           sql.NullInt64 `db:"home_score"`
	AwayScore           sql.NullInt64 `db:"away_score"`
}
