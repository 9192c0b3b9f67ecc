package models

import "time"

// Prediction is one user's score prediction for one match, optionally scoped
// to a private league. A row with Override set is a league-scoped shadow of
// the user's global prediction: lookups resolve to the scoped row if present,
// else the global one. Overrides exist so a tournament-wide joker can be
// switched off inside a single league without touching any other scope.
type Prediction struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	LeagueID  *int      `json:"league_id,omitempty" db:"league_id"`
	HomeGoals int       `json:"home_goals" db:"home_goals"`
	AwayGoals int       `json:"away_goals" db:"away_goals"`
	Points    int       `json:"points" db:"points"`
	Joker     bool      `json:"joker" db:"joker"`
	Override  bool      `json:"override" db:"override"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
