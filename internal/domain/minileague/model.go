package minileague

type League struct {
	ID   int
	Name string
}

type Member struct {
	LeagueID  int
	ManagerID int
}
