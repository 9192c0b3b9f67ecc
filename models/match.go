package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
)

// Slot numbers for the two team slots of a match.
const (
	SlotHome = 1
	SlotAway = 2
)

// Match is a single fixture. Team slots start out as placeholder codes
// ("1A" group A winner, "2A" runner-up, "3RD-2" second-best third place) and
// are resolved to a team name plus crest URL by the promotion engine.
// Knockout matches statically declare their successor through NextMatchID and
// NextSlot; two-legged ties share a BracketPos and differ in Leg.
type Match struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	Phase        Phase  `json:"phase" db:"phase"`
	GroupTag     *string `json:"group_tag,omitempty" db:"group_tag"`

	HomeTeam        *string `json:"home_team,omitempty" db:"home_team"`
	AwayTeam        *string `json:"away_team,omitempty" db:"away_team"`
	HomeCrestURL    *string `json:"home_crest_url,omitempty" db:"home_crest_url"`
	AwayCrestURL    *string `json:"away_crest_url,omitempty" db:"away_crest_url"`
	HomePlaceholder string  `json:"home_placeholder" db:"home_placeholder"`
	AwayPlaceholder string  `json:"away_placeholder" db:"away_placeholder"`

	BracketPos  *int `json:"bracket_pos,omitempty" db:"bracket_pos"`
	Leg         int  `json:"leg" db:"leg"`
	NextMatchID *int `json:"next_match_id,omitempty" db:"next_match_id"`
	NextSlot    *int `json:"next_slot,omitempty" db:"next_slot"`

	HomeScore      *int    `json:"home_score,omitempty" db:"home_score"`
	AwayScore      *int    `json:"away_score,omitempty" db:"away_score"`
	ShootoutWinner *string `json:"shootout_winner,omitempty" db:"shootout_winner"`

	Status    MatchStatus `json:"status" db:"status"`
	Locked    bool        `json:"locked" db:"locked"`
	KickoffAt time.Time   `json:"kickoff_at" db:"kickoff_at"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// Finished reports whether the match reached its terminal state with scores.
func (m *Match) Finished() bool {
	return m.Status == MatchStatusFinished && m.HomeScore != nil && m.AwayScore != nil
}

// SlotTeam returns the resolved team of the given slot, or nil.
func (m *Match) SlotTeam(slot int) *string {
	if slot == SlotHome {
		return m.HomeTeam
	}
	return m.AwayTeam
}

// SlotPlaceholder returns the placeholder code of the given slot.
func (m *Match) SlotPlaceholder(slot int) string {
	if slot == SlotHome {
		return m.HomePlaceholder
	}
	return m.AwayPlaceholder
}
