package team

// Team is one Premier League club from the upstream bootstrap.
type Team struct {
	ID                  int
	Name                string
	ShortName           string
	Strength            int
	StrengthOverallHome int
	StrengthOverallAway int
	StrengthAttackHome  int
	StrengthAttackAway  int
	StrengthDefenceHome int
	StrengthDefenceAway int
}
