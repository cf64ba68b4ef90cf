package postgres

import "github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"

type playerStatsTableModel struct {
	PlayerID                 int     `db:"player_id"`
	GameweekID               int     `db:"gameweek_id"`
	FixtureID                int     `db:"fixture_id"`
	TeamID                   int     `db:"team_id"`
	OpponentTeamID           int     `db:"opponent_team_id"`
	WasHome                  bool    `db:"was_home"`
	Minutes                  int     `db:"minutes"`
	TotalPoints              int     `db:"total_points"`
	BPS                      int     `db:"bps"`
	Bonus                    int     `db:"bonus"`
	BonusStatus              string  `db:"bonus_status"`
	Goals                    int     `db:"goals"`
	Assists                  int     `db:"assists"`
	CleanSheets              int     `db:"clean_sheets"`
	Saves                    int     `db:"saves"`
	DefensiveContribution    int     `db:"defensive_contribution"`
	YellowCards              int     `db:"yellow_cards"`
	RedCards                 int     `db:"red_cards"`
	ExpectedGoals            float64 `db:"expected_goals"`
	ExpectedAssists          float64 `db:"expected_assists"`
	ExpectedGoalInvolvements float64 `db:"expected_goal_involvements"`
	ExpectedGoalsConceded    float64 `db:"expected_goals_conceded"`
	Influence                float64 `db:"influence"`
	Creativity               float64 `db:"creativity"`
	Threat                   float64 `db:"threat"`
	ICTIndex                 float64 `db:"ict_index"`
	MatchFinished            bool    `db:"match_finished"`
	MatchFinishedProvisional bool    `db:"match_finished_provisional"`
}

func playerStatsInsertRow(item playerstats.Stats) playerStatsTableModel {
	return playerStatsTableModel{
		PlayerID:                 item.PlayerID,
		GameweekID:               item.GameweekID,
		FixtureID:                item.FixtureID,
		TeamID:                   item.TeamID,
		OpponentTeamID:           item.OpponentTeamID,
		WasHome:                  item.WasHome,
		Minutes:                  item.Minutes,
		TotalPoints:              item.TotalPoints,
		BPS:                      item.BPS,
		Bonus:                    item.Bonus,
		BonusStatus:              item.BonusStatus,
		Goals:                    item.Goals,
		Assists:                  item.Assists,
		CleanSheets:              item.CleanSheets,
		Saves:                    item.Saves,
		DefensiveContribution:    item.DefensiveContribution,
		YellowCards:              item.YellowCards,
		RedCards:                 item.RedCards,
		ExpectedGoals:            item.ExpectedGoals,
		ExpectedAssists:          item.ExpectedAssists,
		ExpectedGoalInvolvements: item.ExpectedGoalInvolvements,
		ExpectedGoalsConceded:    item.ExpectedGoalsConceded,
		Influence:                item.Influence,
		Creativity:               item.Creativity,
		Threat:                   item.Threat,
		ICTIndex:                 item.ICTIndex,
		MatchFinished:            item.MatchFinished,
		MatchFinishedProvisional: item.MatchFinishedProvisional,
	}
}

func playerStatsFromRow(row playerStatsTableModel) playerstats.Stats {
	return playerstats.Stats{
		PlayerID:                 row.PlayerID,
		GameweekID:               row.GameweekID,
		FixtureID:                row.FixtureID,
		TeamID:                   row.TeamID,
		OpponentTeamID:           row.OpponentTeamID,
		WasHome:                  row.WasHome,
		Minutes:                  row.Minutes,
		TotalPoints:              row.TotalPoints,
		BPS:                      row.BPS,
		Bonus:                    row.Bonus,
		BonusStatus:              row.BonusStatus,
		Goals:                    row.Goals,
		Assists:                  row.Assists,
		CleanSheets:              row.CleanSheets,
		Saves:                    row.Saves,
		DefensiveContribution:    row.DefensiveContribution,
		YellowCards:              row.YellowCards,
		RedCards:                 row.RedCards,
		ExpectedGoals:            row.ExpectedGoals,
		ExpectedAssists:          row.ExpectedAssists,
		ExpectedGoalInvolvements: row.ExpectedGoalInvolvements,
		ExpectedGoalsConceded:    row.ExpectedGoalsConceded,
		Influence:                row.Influence,
		Creativity:               row.Creativity,
		Threat:                   row.Threat,
		ICTIndex:                 row.ICTIndex,
		MatchFinished:            row.MatchFinished,
		MatchFinishedProvisional: row.MatchFinishedProvisional,
	}
}
