package postgres

type teamInsertModel struct {
	ID                  int    `db:"id"`
	Name                string `db:"name"`
	ShortName           string `db:"short_name"`
	Strength            int    `db:"strength"`
	StrengthOverallHome int    `db:"strength_overall_home"`
	StrengthOverallAway int    `db:"strength_overall_away"`
	StrengthAttackHome  int    `db:"strength_attack_home"`
	StrengthAttackAway  int    `db:"strength_attack_away"`
	StrengthDefenceHome int    `db:"strength_defence_home"`
	StrengthDefenceAway int    `db:"strength_defence_away"`
}
