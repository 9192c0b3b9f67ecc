package models

import (
	"encoding/json"
	"time"
)

// Bracket holds a user's long-range picks: match id → predicted advancing
// team. Picks and the credited-match set are stored as raw JSON columns and
// parsed on demand.
type Bracket struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	LeagueID     *int      `json:"league_id,omitempty" db:"league_id"`
	PicksJSON    string    `json:"-" db:"picks_json"`
	CreditedJSON string    `json:"-" db:"credited_json"`
	Points       int       `json:"points" db:"points"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Parsed views, populated by services for JSON responses.
	Picks map[int]string `json:"picks,omitempty" db:"-"`
}

// ParsePicks decodes the picks column. An empty column yields an empty map.
func (b *Bracket) ParsePicks() (map[int]string, error) {
	picks := make(map[int]string)
	if b.PicksJSON == "" {
		return picks, nil
	}
	if err := json.Unmarshal([]byte(b.PicksJSON), &picks); err != nil {
		return nil, err
	}
	return picks, nil
}

func (b *Bracket) SetPicks(picks map[int]string) error {
	raw, err := json.Marshal(picks)
	if err != nil {
		return err
	}
	b.PicksJSON = string(raw)
	b.Picks = picks
	return nil
}

// ParseCredited decodes the set of match ids already credited to this
// bracket. Crediting consults this set so duplicate delivery of the same
// match-finished fact cannot double-count.
func (b *Bracket) ParseCredited() (map[int]bool, error) {
	credited := make(map[int]bool)
	if b.CreditedJSON == "" {
		return credited, nil
	}
	if err := json.Unmarshal([]byte(b.CreditedJSON), &credited); err != nil {
		return nil, err
	}
	return credited, nil
}

func (b *Bracket) SetCredited(credited map[int]bool) error {
	raw, err := json.Marshal(credited)
	if err != nil {
		return err
	}
	b.CreditedJSON = string(raw)
	return nil
}
