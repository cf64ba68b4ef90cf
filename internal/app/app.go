// Package app wires configuration, the Postgres store, the upstream client
// and the refresh services into a runnable orchestrator.
package app

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/fpl-mirror/external/fplapi"
	"github.com/riskibarqy/fpl-mirror/internal/config"
	aggregatedomain "github.com/riskibarqy/fpl-mirror/internal/domain/aggregate"
	baselinedomain "github.com/riskibarqy/fpl-mirror/internal/domain/baseline"
	fixturedomain "github.com/riskibarqy/fpl-mirror/internal/domain/fixture"
	gameweekdomain "github.com/riskibarqy/fpl-mirror/internal/domain/gameweek"
	managerdomain "github.com/riskibarqy/fpl-mirror/internal/domain/manager"
	minileaguedomain "github.com/riskibarqy/fpl-mirror/internal/domain/minileague"
	playerdomain "github.com/riskibarqy/fpl-mirror/internal/domain/player"
	playerstatsdomain "github.com/riskibarqy/fpl-mirror/internal/domain/playerstats"
	refreshlogdomain "github.com/riskibarqy/fpl-mirror/internal/domain/refreshlog"
	teamdomain "github.com/riskibarqy/fpl-mirror/internal/domain/team"
	postgresrepo "github.com/riskibarqy/fpl-mirror/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
	"github.com/riskibarqy/fpl-mirror/internal/platform/resilience"
	"github.com/riskibarqy/fpl-mirror/internal/usecase"
)

// App owns the orchestrator and the resources it runs on.
type App struct {
	Orchestrator *usecase.Orchestrator

	closeDB func() error
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	client := fplapi.NewClient(fplapi.ClientConfig{
		BaseURL:            cfg.FPLBaseURL,
		Timeout:            cfg.FPLTimeout,
		MaxRetries:         cfg.MaxRetries,
		RetryBackoffBase:   cfg.RetryBackoffBase,
		MaxRetryDelay:      cfg.MaxRetryDelay,
		RequestsPerMinute:  cfg.MaxRequestsPerMinute,
		MinRequestInterval: cfg.MinRequestInterval,
		BootstrapTTL:       cfg.BootstrapCacheTTL,
		Logger:             logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FPLCircuitEnabled,
			FailureThreshold: cfg.FPLCircuitFailureCount,
			OpenTimeout:      cfg.FPLCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FPLCircuitHalfOpenMaxRq,
		},
	})

	var gameweekRepo gameweekdomain.Repository = postgresrepo.NewGameweekRepository(db)
	var teamRepo teamdomain.Repository = postgresrepo.NewTeamRepository(db)
	var playerRepo playerdomain.Repository = postgresrepo.NewPlayerRepository(db)
	var fixtureRepo fixturedomain.Repository = postgresrepo.NewFixtureRepository(db)
	var statsRepo playerstatsdomain.Repository = postgresrepo.NewPlayerStatsRepository(db)
	var managerRepo managerdomain.Repository = postgresrepo.NewManagerRepository(db)
	var leagueRepo minileaguedomain.Repository = postgresrepo.NewMiniLeagueRepository(db)
	var baselineRepo baselinedomain.Repository = postgresrepo.NewBaselineRepository(db)
	var refreshLogRepo refreshlogdomain.Repository = postgresrepo.NewRefreshLogRepository(db)
	var viewRefresher aggregatedomain.Refresher = postgresrepo.NewAggregateRefresher(db)

	playerSvc := usecase.NewPlayerRefreshService(client, playerRepo, teamRepo, statsRepo, fixtureRepo, logger)
	managerSvc := usecase.NewManagerRefreshService(
		client,
		managerRepo,
		leagueRepo,
		playerRepo,
		statsRepo,
		fixtureRepo,
		usecase.ManagerRefreshConfig{
			BatchSize:          cfg.ManagerPointsBatchSize,
			BatchSleep:         cfg.ManagerPointsBatchSleep,
			DeadlineBatchSize:  cfg.DeadlineBatchSize,
			DeadlineBatchSleep: cfg.DeadlineBatchSleep,
		},
		logger,
	)
	baselineSvc := usecase.NewBaselineService(managerRepo, fixtureRepo, baselineRepo, logger)

	orchestrator := usecase.NewOrchestrator(
		client,
		gameweekRepo,
		fixtureRepo,
		statsRepo,
		leagueRepo,
		refreshLogRepo,
		viewRefresher,
		playerSvc,
		managerSvc,
		baselineSvc,
		usecase.OrchestratorConfig{
			FastIntervalLive:      cfg.FastIntervalLive,
			FastIntervalDeadline:  cfg.FastIntervalDeadline,
			FastIntervalPrice:     cfg.FastIntervalPrice,
			MaxIdleSleep:          cfg.MaxIdleSleep,
			KickoffWindow:         cfg.KickoffWindow,
			SlowIntervalLive:      cfg.SlowIntervalLive,
			SlowIntervalIdle:      cfg.SlowIntervalIdle,
			IdleCohortEvery:       cfg.IdleCohortEvery,
			LiveStandingsInterval: cfg.LiveStandingsInterval,
			FullRefreshLive:       cfg.FullRefreshLive,
			DeadlineLag:           cfg.DeadlineLag,
			PostDeadlineSettle:    cfg.PostDeadlineSettle,
			PriceWindowStart:      cfg.PriceChangeTime,
			PriceWindowDuration:   cfg.PriceWindowDuration,
			PriceCooldown:         cfg.PriceCooldown,
			Location:              cfg.PriceLocation,
			RankMonitorInterval:   cfg.RankMonitorInterval,
			RankMonitorAfter:      cfg.RankMonitorAfter,
			MiniLeagueIDs:         cfg.MiniLeagueIDs,
			RequiredManagerIDs:    cfg.RequiredManagerIDs,
		},
		logger,
	)

	return &App{
		Orchestrator: orchestrator,
		closeDB:      db.Close,
	}, nil
}

func (a *App) Close() error {
	if a.closeDB == nil {
		return nil
	}

	return a.closeDB()
}
