package postgres

import "time"

type playerInsertModel struct {
	ID                int     `db:"id"`
	TeamID            int     `db:"team_id"`
	Position          string  `db:"position"`
	WebName           string  `db:"web_name"`
	CostTenths        int     `db:"cost_tenths"`
	SelectedByPercent float64 `db:"selected_by_percent"`
}

type playerPositionRowModel struct {
	ID       int    `db:"id"`
	Position string `db:"position"`
}

type playerPriceInsertModel struct {
	PlayerID   int       `db:"player_id"`
	GameweekID int       `db:"gameweek_id"`
	CostTenths int       `db:"cost_tenths"`
	RecordedAt time.Time `db:"recorded_at"`
}
