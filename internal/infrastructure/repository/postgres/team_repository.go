package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-mirror/internal/domain/team"
	qb "github.com/riskibarqy/fpl-mirror/internal/platform/querybuilder"
)

type TeamRepository struct {
	db *sqlx.DB
}

var _ team.Repository = (*TeamRepository)(nil)

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) UpsertMany(ctx context.Context, items []team.Team) error {
	for _, item := range items {
		insertModel := teamInsertModel{
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
		}
		query, args, err := qb.InsertModel("teams", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    name = EXCLUDED.name,
    short_name = EXCLUDED.short_name,
    strength = EXCLUDED.strength,
    strength_overall_home = EXCLUDED.strength_overall_home,
    strength_overall_away = EXCLUDED.strength_overall_away,
    strength_attack_home = EXCLUDED.strength_attack_home,
    strength_attack_away = EXCLUDED.strength_attack_away,
    strength_defence_home = EXCLUDED.strength_defence_home,
    strength_defence_away = EXCLUDED.strength_defence_away,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert team query: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert team %d: %w", item.ID, err)
		}
	}
	return nil
}
