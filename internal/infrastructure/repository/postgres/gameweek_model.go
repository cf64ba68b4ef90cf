package postgres

import (
	"database/sql"
	"time"
)

type gameweekTableModel struct {
	ID             int          `db:"id"`
	Name           string       `db:"name"`
	DeadlineAt     time.Time    `db:"deadline_at"`
	ReleaseAt      sql.NullTime `db:"release_at"`
	IsCurrent      bool         `db:"is_current"`
	IsNext         bool         `db:"is_next"`
	IsPrevious     bool         `db:"is_previous"`
	Finished       bool         `db:"finished"`
	DataChecked    bool         `db:"data_checked"`
	RanksFinalized bool         `db:"ranks_finalized"`
}

type gameweekInsertModel struct {
	ID          int          `db:"id"`
	Name        string       `db:"name"`
	DeadlineAt  time.Time    `db:"deadline_at"`
	ReleaseAt   sql.NullTime `db:"release_at"`
	IsCurrent   bool         `db:"is_current"`
	IsNext      bool         `db:"is_next"`
	IsPrevious  bool         `db:"is_previous"`
	Finished    bool         `db:"finished"`
	DataChecked bool         `db:"data_checked"`
}
