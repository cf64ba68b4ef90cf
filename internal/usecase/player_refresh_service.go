package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
	"github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	"github.com/riskibarqy/fpl-mirror/internal/domain/player"
	"github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	"github.com/riskibarqy/fpl-mirror/internal/domain/team"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
)

// PlayerRefreshService merges per-player live stats and fixture context into
// the store. The event-live payload is the cheap path (one upstream call per
// gameweek); element-summary is the per-player fallback and the catch-up
// vehicle for confirmed bonus.
type PlayerRefreshService struct {
	client   UpstreamClient
	players  player.Repository
	teams    team.Repository
	stats    playerstats.Repository
	fixtures fixture.Repository
	logger   *logging.Logger
	now      func() time.Time
}

func NewPlayerRefreshService(
	client UpstreamClient,
	players player.Repository,
	teams team.Repository,
	stats playerstats.Repository,
	fixtures fixture.Repository,
	logger *logging.Logger,
) *PlayerRefreshService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PlayerRefreshService{
		client:   client,
		players:  players,
		teams:    teams,
		stats:    stats,
		fixtures: fixtures,
		logger:   logger,
		now:      time.Now,
	}
}

// RefreshPlayerStatsParams selects the input path: when Live is present the
// event-live snapshot drives everything; otherwise each player falls back to
// an element-summary fetch.
type RefreshPlayerStatsParams struct {
	Gameweek  int
	PlayerIDs []int
	Live      *fplapi.EventLive
	Fixtures  []fplapi.Fixture
	Bootstrap *fplapi.Bootstrap
	LiveOnly  bool
}

func (s *PlayerRefreshService) RefreshPlayerStats(ctx context.Context, params RefreshPlayerStatsParams) error {
	ctx, span := startUsecaseSpan(ctx, "PlayerRefreshService.RefreshPlayerStats")
	defer span.End()

	if params.Gameweek <= 0 {
		return fmt.Errorf("%w: gameweek is required", ErrInvalidInput)
	}
	if len(params.PlayerIDs) == 0 {
		return nil
	}

	fixturesByID := indexFixtures(params.Fixtures)
	teamByPlayer := indexPlayerTeams(params.Bootstrap)

	var liveRows, finalRows []playerstats.Stats
	if params.Live != nil {
		liveByID := make(map[int]fplapi.LiveElement, len(params.Live.Elements))
		for _, element := range params.Live.Elements {
			liveByID[element.ID] = element
		}
		for _, playerID := range params.PlayerIDs {
			element, ok := liveByID[playerID]
			if !ok {
				continue
			}
			rows := rowsFromLiveElement(params.Gameweek, element, fixturesByID, teamByPlayer)
			for _, row := range rows {
				if row.MatchFinished || !params.LiveOnly {
					finalRows = append(finalRows, row)
				} else {
					liveRows = append(liveRows, row)
				}
			}
		}
	} else {
		for _, playerID := range params.PlayerIDs {
			summary, err := s.client.ElementSummary(ctx, playerID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.WarnContext(ctx, "element summary fetch failed, skipping player",
					"player_id", playerID, "gameweek", params.Gameweek, "error", err)
				continue
			}
			rows := rowsFromElementSummary(params.Gameweek, playerID, summary, fixturesByID, teamByPlayer)
			for _, row := range rows {
				if row.MatchFinished || !params.LiveOnly {
					finalRows = append(finalRows, row)
				} else {
					liveRows = append(liveRows, row)
				}
			}
		}
	}

	if len(finalRows) > 0 {
		if err := s.stats.UpsertFinal(ctx, finalRows); err != nil {
			return fmt.Errorf("upsert final player stats gw=%d: %w", params.Gameweek, err)
		}
	}
	if len(liveRows) > 0 {
		if err := s.stats.UpsertLive(ctx, liveRows); err != nil {
			return fmt.Errorf("upsert live player stats gw=%d: %w", params.Gameweek, err)
		}
	}
	return nil
}

// SyncPlayersFromBootstrap refreshes the player pool, ownership and costs.
func (s *PlayerRefreshService) SyncPlayersFromBootstrap(ctx context.Context, bootstrap fplapi.Bootstrap) error {
	ctx, span := startUsecaseSpan(ctx, "PlayerRefreshService.SyncPlayersFromBootstrap")
	defer span.End()

	teams := make([]team.Team, 0, len(bootstrap.Teams))
	for _, item := range bootstrap.Teams {
		teams = append(teams, team.Team{
			ID:                  item.ID,
			Name:                item.Name,
			ShortName:           item.ShortName,
			Strength:            item.Strength,
			StrengthOverallHome: item.StrengthOverallHome,
			StrengthOverallAway: item.StrengthOverallAway,
			StrengthAttackHome:  item.StrengthAttackHome,
			StrengthAttackAway:  item.StrengthAttackAway,
			StrengthDefenceHome: item.StrengthDefenceHome,
			StrengthDefenceAway: item.StrengthDefenceAway,
		})
	}
	if err := s.teams.UpsertMany(ctx, teams); err != nil {
		return fmt.Errorf("upsert teams: %w", err)
	}

	players := make([]player.Player, 0, len(bootstrap.Elements))
	for _, element := range bootstrap.Elements {
		players = append(players, player.Player{
			ID:                element.ID,
			TeamID:            element.Team,
			Position:          player.PositionFromElementType(element.ElementType),
			WebName:           element.WebName,
			CostTenths:        element.NowCost,
			SelectedByPercent: parseUpstreamFloat(element.SelectedByPercent),
		})
	}
	if err := s.players.UpsertMany(ctx, players); err != nil {
		return fmt.Errorf("upsert players: %w", err)
	}
	return nil
}

// SyncPlayerPricesFromBootstrap appends the current-gameweek point of each
// player's price series.
func (s *PlayerRefreshService) SyncPlayerPricesFromBootstrap(ctx context.Context, bootstrap fplapi.Bootstrap, gameweek int) error {
	ctx, span := startUsecaseSpan(ctx, "PlayerRefreshService.SyncPlayerPricesFromBootstrap")
	defer span.End()

	if gameweek <= 0 {
		return fmt.Errorf("%w: gameweek is required", ErrInvalidInput)
	}

	recordedAt := s.now().UTC()
	prices := make([]player.Price, 0, len(bootstrap.Elements))
	for _, element := range bootstrap.Elements {
		prices = append(prices, player.Price{
			PlayerID:   element.ID,
			GameweekID: gameweek,
			CostTenths: element.NowCost,
			RecordedAt: recordedAt,
		})
	}
	if err := s.players.UpsertPrices(ctx, prices); err != nil {
		return fmt.Errorf("upsert player prices gw=%d: %w", gameweek, err)
	}
	return nil
}

// CatchUpConfirmedBonus pulls element summaries for every player still
// holding a provisional bonus row and rewrites the rows whose fixture has
// fully finished with the authoritative bonus. It returns how many players
// still hold provisional rows afterwards, so the caller can stop polling
// once the count reaches zero.
func (s *PlayerRefreshService) CatchUpConfirmedBonus(ctx context.Context, gameweek int) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "PlayerRefreshService.CatchUpConfirmedBonus")
	defer span.End()

	pending, err := s.stats.ListProvisionalPlayerIDs(ctx, gameweek)
	if err != nil {
		return 0, fmt.Errorf("list provisional players gw=%d: %w", gameweek, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	bootstrap, err := s.client.Bootstrap(ctx)
	if err != nil {
		return len(pending), fmt.Errorf("bootstrap for bonus catch-up: %w", err)
	}
	upstream, err := s.client.Fixtures(ctx)
	if err != nil {
		return len(pending), fmt.Errorf("fixtures for bonus catch-up: %w", err)
	}

	if err := s.RefreshPlayerStats(ctx, RefreshPlayerStatsParams{
		Gameweek:  gameweek,
		PlayerIDs: pending,
		Fixtures:  upstream,
		Bootstrap: &bootstrap,
	}); err != nil {
		return len(pending), err
	}

	remaining, err := s.stats.ListProvisionalPlayerIDs(ctx, gameweek)
	if err != nil {
		return 0, fmt.Errorf("recount provisional players gw=%d: %w", gameweek, err)
	}
	return len(remaining), nil
}

func rowsFromLiveElement(gameweek int, element fplapi.LiveElement, fixturesByID map[int]fplapi.Fixture, teamByPlayer map[int]int) []playerstats.Stats {
	teamID := teamByPlayer[element.ID]

	explains := element.Explain
	sort.SliceStable(explains, func(i, j int) bool { return explains[i].Fixture < explains[j].Fixture })

	rows := make([]playerstats.Stats, 0, len(explains))
	single := len(explains) == 1
	for _, explain := range explains {
		fx, haveFixture := fixturesByID[explain.Fixture]
		if !haveFixture {
			// Fixture status unknown; safer to skip than to guess.
			continue
		}

		row := playerstats.Stats{
			PlayerID:                 element.ID,
			GameweekID:               gameweek,
			FixtureID:                explain.Fixture,
			TeamID:                   teamID,
			MatchFinished:            fx.Finished,
			MatchFinishedProvisional: fx.FinishedProvisional,
		}
		row.WasHome = teamID != 0 && fx.TeamH == teamID
		if row.WasHome {
			row.OpponentTeamID = fx.TeamA
		} else {
			row.OpponentTeamID = fx.TeamH
		}

		if single {
			applyLiveStats(&row, element.Stats)
		} else {
			// Double gameweek: the explain breakdown is the only per-fixture
			// source. BPS and the index stats stay on the aggregate row the
			// element-summary pass writes after full time.
			for _, entry := range explain.Stats {
				applyExplainEntry(&row, entry)
			}
			row.BPS = element.Stats.BPS
		}

		row.BonusStatus = playerstats.BonusProvisional
		if fx.Finished || row.Bonus > 0 {
			row.BonusStatus = playerstats.BonusConfirmed
		}
		rows = append(rows, row)
	}
	return rows
}

func rowsFromElementSummary(gameweek, playerID int, summary fplapi.ElementSummary, fixturesByID map[int]fplapi.Fixture, teamByPlayer map[int]int) []playerstats.Stats {
	rows := make([]playerstats.Stats, 0, 2)
	for _, item := range summary.History {
		if item.Round != gameweek {
			continue
		}

		row := playerstats.Stats{
			PlayerID:                 playerID,
			GameweekID:               gameweek,
			FixtureID:                item.Fixture,
			TeamID:                   teamByPlayer[playerID],
			OpponentTeamID:           item.OpponentTeam,
			WasHome:                  item.WasHome,
			Minutes:                  item.Minutes,
			TotalPoints:              item.TotalPoints,
			BPS:                      item.BPS,
			Bonus:                    item.Bonus,
			Goals:                    item.GoalsScored,
			Assists:                  item.Assists,
			CleanSheets:              item.CleanSheets,
			Saves:                    item.Saves,
			DefensiveContribution:    item.DefensiveContribution,
			YellowCards:              item.YellowCards,
			RedCards:                 item.RedCards,
			ExpectedGoals:            parseUpstreamFloat(item.ExpectedGoals),
			ExpectedAssists:          parseUpstreamFloat(item.ExpectedAssists),
			ExpectedGoalInvolvements: parseUpstreamFloat(item.ExpectedGoalInvolves),
			ExpectedGoalsConceded:    parseUpstreamFloat(item.ExpectedGoalsConceded),
			Influence:                parseUpstreamFloat(item.Influence),
			Creativity:               parseUpstreamFloat(item.Creativity),
			Threat:                   parseUpstreamFloat(item.Threat),
			ICTIndex:                 parseUpstreamFloat(item.ICTIndex),
		}
		if fx, ok := fixturesByID[item.Fixture]; ok {
			row.MatchFinished = fx.Finished
			row.MatchFinishedProvisional = fx.FinishedProvisional
		}

		row.BonusStatus = playerstats.BonusProvisional
		if row.MatchFinished || row.Bonus > 0 {
			row.BonusStatus = playerstats.BonusConfirmed
		}
		rows = append(rows, row)
	}
	return rows
}

func applyLiveStats(row *playerstats.Stats, stats fplapi.LiveStats) {
	row.Minutes = stats.Minutes
	row.TotalPoints = stats.TotalPoints
	row.BPS = stats.BPS
	row.Bonus = stats.Bonus
	row.Goals = stats.GoalsScored
	row.Assists = stats.Assists
	row.CleanSheets = stats.CleanSheets
	row.Saves = stats.Saves
	row.DefensiveContribution = stats.DefensiveContribution
	row.YellowCards = stats.YellowCards
	row.RedCards = stats.RedCards
	row.ExpectedGoals = parseUpstreamFloat(stats.ExpectedGoals)
	row.ExpectedAssists = parseUpstreamFloat(stats.ExpectedAssists)
	row.ExpectedGoalInvolvements = parseUpstreamFloat(stats.ExpectedGoalInvolves)
	row.ExpectedGoalsConceded = parseUpstreamFloat(stats.ExpectedGoalsConceded)
	row.Influence = parseUpstreamFloat(stats.Influence)
	row.Creativity = parseUpstreamFloat(stats.Creativity)
	row.Threat = parseUpstreamFloat(stats.Threat)
	row.ICTIndex = parseUpstreamFloat(stats.ICTIndex)
}

func applyExplainEntry(row *playerstats.Stats, entry fplapi.LiveExplainEntry) {
	row.TotalPoints += entry.Points
	switch entry.Identifier {
	case "minutes":
		row.Minutes = entry.Value
	case "goals_scored":
		row.Goals = entry.Value
	case "assists":
		row.Assists = entry.Value
	case "clean_sheets":
		row.CleanSheets = entry.Value
	case "saves":
		row.Saves = entry.Value
	case "defensive_contribution":
		row.DefensiveContribution = entry.Value
	case "yellow_cards":
		row.YellowCards = entry.Value
	case "red_cards":
		row.RedCards = entry.Value
	case "bonus":
		row.Bonus = entry.Value
	}
}

func indexFixtures(items []fplapi.Fixture) map[int]fplapi.Fixture {
	out := make(map[int]fplapi.Fixture, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	return out
}

func indexPlayerTeams(bootstrap *fplapi.Bootstrap) map[int]int {
	if bootstrap == nil {
		return map[int]int{}
	}
	out := make(map[int]int, len(bootstrap.Elements))
	for _, element := range bootstrap.Elements {
		out[element.ID] = element.Team
	}
	return out
}

func parseUpstreamFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
