package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/aggregate"
)

// Derived read models, refreshed in dependency order. The live subset skips
// the season-wide aggregates, which are too expensive for a 15s cadence.
var (
	allViews = []string{
		"mv_mini_league_standings",
		"mv_manager_gameweek_summary",
		"mv_player_ownership",
		"mv_season_totals",
	}
	liveViews = []string{
		"mv_mini_league_standings",
		"mv_manager_gameweek_summary",
	}
)

type AggregateRefresher struct {
	db *sqlx.DB
}

var _ aggregate.Refresher = (*AggregateRefresher)(nil)

func NewAggregateRefresher(db *sqlx.DB) *AggregateRefresher {
	return &AggregateRefresher{db: db}
}

func (r *AggregateRefresher) RefreshAll(ctx context.Context) error {
	return r.refresh(ctx, allViews)
}

func (r *AggregateRefresher) RefreshLive(ctx context.Context) error {
	return r.refresh(ctx, liveViews)
}

func (r *AggregateRefresher) refresh(ctx context.Context, views []string) error {
	for _, view := range views {
		// CONCURRENTLY keeps readers unblocked; it fails until the view has
		// been populated once, so fall back to a plain refresh.
		if _, err := r.db.ExecContext(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+view); err != nil {
			if _, plainErr := r.db.ExecContext(ctx, "REFRESH MATERIALIZED VIEW "+view); plainErr != nil {
				return fmt.Errorf("refresh view %s: %w", view, plainErr)
			}
		}
	}
	return nil
}
