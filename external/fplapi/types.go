package fplapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tenths is a monetary quantity in tenths of the currency unit. The upstream
// serializes the same field as an int (1005) or a float in pounds (100.5)
// depending on endpoint; both decode to the int-tenths form.
type Tenths int

func (t *Tenths) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*t = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)

	if !strings.Contains(raw, ".") {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse tenths %q: %w", raw, err)
		}
		*t = Tenths(value)
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse tenths %q: %w", raw, err)
	}
	if value >= 0 {
		*t = Tenths(value*10 + 0.5)
	} else {
		*t = Tenths(value*10 - 0.5)
	}
	return nil
}

type Bootstrap struct {
	Events       []Event   `json:"events"`
	Teams        []Team    `json:"teams"`
	Elements     []Element `json:"elements"`
	TotalPlayers int       `json:"total_players"`
}

type Event struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	DeadlineTime time.Time  `json:"deadline_time"`
	ReleaseTime  *time.Time `json:"release_time"`
	IsCurrent    bool       `json:"is_current"`
	IsNext       bool       `json:"is_next"`
	IsPrevious   bool       `json:"is_previous"`
	Finished     bool       `json:"finished"`
	DataChecked  bool       `json:"data_checked"`
}

type Team struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	ShortName           string `json:"short_name"`
	Strength            int    `json:"strength"`
	StrengthOverallHome int    `json:"strength_overall_home"`
	StrengthOverallAway int    `json:"strength_overall_away"`
	StrengthAttackHome  int    `json:"strength_attack_home"`
	StrengthAttackAway  int    `json:"strength_attack_away"`
	StrengthDefenceHome int    `json:"strength_defence_home"`
	StrengthDefenceAway int    `json:"strength_defence_away"`
}

type Element struct {
	ID                int    `json:"id"`
	Team              int    `json:"team"`
	ElementType       int    `json:"element_type"`
	WebName           string `json:"web_name"`
	NowCost           int    `json:"now_cost"`
	SelectedByPercent string `json:"selected_by_percent"`
}

type Fixture struct {
	ID                  int        `json:"id"`
	Event               *int       `json:"event"`
	TeamH               int        `json:"team_h"`
	TeamA               int        `json:"team_a"`
	KickoffTime         *time.Time `json:"kickoff_time"`
	Started             *bool      `json:"started"`
	FinishedProvisional bool       `json:"finished_provisional"`
	Finished            bool       `json:"finished"`
	Minutes             int        `json:"minutes"`
	TeamHScore          *int       `json:"team_h_score"`
	TeamAScore          *int       `json:"team_a_score"`
}

type EventLive struct {
	Elements []LiveElement `json:"elements"`
}

type LiveElement struct {
	ID      int           `json:"id"`
	Stats   LiveStats     `json:"stats"`
	Explain []LiveExplain `json:"explain"`
}

type LiveStats struct {
	Minutes               int    `json:"minutes"`
	GoalsScored           int    `json:"goals_scored"`
	Assists               int    `json:"assists"`
	CleanSheets           int    `json:"clean_sheets"`
	Saves                 int    `json:"saves"`
	DefensiveContribution int    `json:"defensive_contribution"`
	YellowCards           int    `json:"yellow_cards"`
	RedCards              int    `json:"red_cards"`
	Bonus                 int    `json:"bonus"`
	BPS                   int    `json:"bps"`
	TotalPoints           int    `json:"total_points"`
	ExpectedGoals         string `json:"expected_goals"`
	ExpectedAssists       string `json:"expected_assists"`
	ExpectedGoalInvolves  string `json:"expected_goal_involvements"`
	ExpectedGoalsConceded string `json:"expected_goals_conceded"`
	Influence             string `json:"influence"`
	Creativity            string `json:"creativity"`
	Threat                string `json:"threat"`
	ICTIndex              string `json:"ict_index"`
}

type LiveExplain struct {
	Fixture int                `json:"fixture"`
	Stats   []LiveExplainEntry `json:"stats"`
}

type LiveExplainEntry struct {
	Identifier string `json:"identifier"`
	Points     int    `json:"points"`
	Value      int    `json:"value"`
}

type ElementSummary struct {
	History []ElementHistoryItem `json:"history"`
}

type ElementHistoryItem struct {
	Element               int    `json:"element"`
	Fixture               int    `json:"fixture"`
	Round                 int    `json:"round"`
	OpponentTeam          int    `json:"opponent_team"`
	WasHome               bool   `json:"was_home"`
	Minutes               int    `json:"minutes"`
	GoalsScored           int    `json:"goals_scored"`
	Assists               int    `json:"assists"`
	CleanSheets           int    `json:"clean_sheets"`
	Saves                 int    `json:"saves"`
	DefensiveContribution int    `json:"defensive_contribution"`
	YellowCards           int    `json:"yellow_cards"`
	RedCards              int    `json:"red_cards"`
	Bonus                 int    `json:"bonus"`
	BPS                   int    `json:"bps"`
	TotalPoints           int    `json:"total_points"`
	ExpectedGoals         string `json:"expected_goals"`
	ExpectedAssists       string `json:"expected_assists"`
	ExpectedGoalInvolves  string `json:"expected_goal_involvements"`
	ExpectedGoalsConceded string `json:"expected_goals_conceded"`
	Influence             string `json:"influence"`
	Creativity            string `json:"creativity"`
	Threat                string `json:"threat"`
	ICTIndex              string `json:"ict_index"`
}

type Entry struct {
	ID                int    `json:"id"`
	PlayerFirstName   string `json:"player_first_name"`
	PlayerLastName    string `json:"player_last_name"`
	Name              string `json:"name"`
	LastDeadlineValue Tenths `json:"last_deadline_value"`
	LastDeadlineBank  Tenths `json:"last_deadline_bank"`
}

type EntryHistory struct {
	Current []EntryHistoryRow `json:"current"`
}

type EntryHistoryRow struct {
	Event              int    `json:"event"`
	Points             int    `json:"points"`
	TotalPoints        int    `json:"total_points"`
	Rank               *int   `json:"rank"`
	OverallRank        *int   `json:"overall_rank"`
	Value              Tenths `json:"value"`
	Bank               Tenths `json:"bank"`
	EventTransfers     int    `json:"event_transfers"`
	EventTransfersCost int    `json:"event_transfers_cost"`
}

type EntryPicks struct {
	ActiveChip    *string        `json:"active_chip"`
	AutomaticSubs []AutomaticSub `json:"automatic_subs"`
	EntryHistory  EntryHistoryRow `json:"entry_history"`
	Picks         []Pick         `json:"picks"`
}

type Pick struct {
	Element       int  `json:"element"`
	Position      int  `json:"position"`
	Multiplier    int  `json:"multiplier"`
	IsCaptain     bool `json:"is_captain"`
	IsViceCaptain bool `json:"is_vice_captain"`
}

type AutomaticSub struct {
	Entry      int `json:"entry"`
	ElementIn  int `json:"element_in"`
	ElementOut int `json:"element_out"`
	Event      int `json:"event"`
}

type Transfer struct {
	ElementIn      int       `json:"element_in"`
	ElementInCost  int       `json:"element_in_cost"`
	ElementOut     int       `json:"element_out"`
	ElementOutCost int       `json:"element_out_cost"`
	Entry          int       `json:"entry"`
	Event          int       `json:"event"`
	Time           time.Time `json:"time"`
}

type LeagueStandings struct {
	League    LeagueInfo    `json:"league"`
	Standings StandingsPage `json:"standings"`
}

type LeagueInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type StandingsPage struct {
	HasNext bool             `json:"has_next"`
	Page    int              `json:"page"`
	Results []StandingResult `json:"results"`
}

type StandingResult struct {
	Entry      int    `json:"entry"`
	EntryName  string `json:"entry_name"`
	PlayerName string `json:"player_name"`
	Rank       int    `json:"rank"`
	LastRank   int    `json:"last_rank"`
	Total      int    `json:"total"`
	EventTotal int    `json:"event_total"`
}
