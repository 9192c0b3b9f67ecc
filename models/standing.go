package models

// GroupStanding is one row of a computed group table. It is never persisted;
// the standings calculator derives it from finished matches on demand.
type GroupStanding struct {
	TournamentID   int     `json:"tournament_id"`
	GroupTag       string  `json:"group_tag"`
	Team           string  `json:"team"`
	CrestURL       *string `json:"crest_url,omitempty"`
	Played         int     `json:"played"`
	Won            int     `json:"won"`
	Drawn          int     `json:"drawn"`
	Lost           int     `json:"lost"`
	GoalsFor       int     `json:"goals_for"`
	GoalsAgainst   int     `json:"goals_against"`
	GoalDifference int     `json:"goal_difference"`
	Points         int     `json:"points"`
	Rank           int     `json:"rank"`
}

// GroupStandingOverride is an administrative tie-break pin: when automatic
// ranking leaves teams fully tied, a pinned team sorts to the requested
// position among the tied block. It never overrides the computed criteria.
type GroupStandingOverride struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	GroupTag     string `json:"group_tag" db:"group_tag"`
	Team         string `json:"team" db:"team"`
	Position     int    `json:"position" db:"position"`
}
