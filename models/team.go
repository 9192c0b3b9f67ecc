package models

// Team is a national side taking part in a tournament. CrestKey is the object
// storage key of the uploaded crest image; CrestURL is the resolved public
// URL and is not stored.
type Team struct {
	ID           int     `json:"id" db:"id"`
	TournamentID int     `json:"tournament_id" db:"tournament_id"`
	Name         string  `json:"name" db:"name"`
	GroupTag     string  `json:"group_tag" db:"group_tag"`
	CrestKey     *string `json:"-" db:"crest_key"`
	CrestURL     *string `json:"crest_url,omitempty" db:"-"`
}
