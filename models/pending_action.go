package models

import "time"

// PendingAction surfaces a promotion that cannot proceed automatically, such
// as a level two-legged aggregate with no recorded shootout winner. Open
// actions are listed to operators; they auto-resolve when the blocked bracket
// position eventually promotes.
type PendingAction struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	BracketPos   int        `json:"bracket_pos" db:"bracket_pos"`
	Reason       string     `json:"reason" db:"reason"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
