package gameweek

import "time"

// Gameweek mirrors one upstream event. Lifecycle is upstream-driven: the
// is_next row flips to is_current after the deadline once the upstream
// releases it. RanksFinalized is the only locally-owned flag.
type Gameweek struct {
	ID             int
	Name           string
	DeadlineAt     time.Time
	ReleaseAt      *time.Time
	IsCurrent      bool
	IsNext         bool
	IsPrevious     bool
	Finished       bool
	DataChecked    bool
	RanksFinalized bool
}
