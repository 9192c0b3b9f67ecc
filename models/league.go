package models

import "time"

// League is a private prediction pool inside a tournament. Membership is
// managed elsewhere; the core only reads the block flag to veto writes.
type League struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type LeagueMember struct {
	LeagueID int  `json:"league_id" db:"league_id"`
	UserID   int  `json:"user_id" db:"user_id"`
	Blocked  bool `json:"blocked" db:"blocked"`
}
