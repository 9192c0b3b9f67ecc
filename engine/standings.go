// Package engine contains the pure tournament-progression logic: group
// standings, third-place ranking, prediction scoring, bracket point values
// and two-legged aggregate resolution. Nothing in this package touches a
// store; services feed it loaded records and persist its results.
package engine

import (
	"sort"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

const (
	pointsForWin  = 3
	pointsForDraw = 1
)

// ComputeGroupStandings builds the ordered table of one group.
//
// Every team that appears in any fixture of the group is included, with zero
// stats until it has a finished match. Only finished matches with scores
// count. Order: points desc, goal difference desc, goals for desc; teams
// still tied after that sort by manual override pin (if one is set for the
// group), then by name, so the result is a stable total order for a fixed
// input set.
func ComputeGroupStandings(matches []*models.Match, overrides []models.GroupStandingOverride) []models.GroupStanding {
	if len(matches) == 0 {
		return []models.GroupStanding{}
	}

	tournamentID := matches[0].TournamentID
	groupTag := ""
	if matches[0].GroupTag != nil {
		groupTag = *matches[0].GroupTag
	}

	index := make(map[string]*models.GroupStanding)
	order := make([]string, 0, 8)

	register := func(team *string, crest *string) {
		if team == nil || *team == "" {
			return
		}
		if _, ok := index[*team]; !ok {
			index[*team] = &models.GroupStanding{
				TournamentID: tournamentID,
				GroupTag:     groupTag,
				Team:         *team,
				CrestURL:     crest,
			}
			order = append(order, *team)
		}
	}

	for _, m := range matches {
		register(m.HomeTeam, m.HomeCrestURL)
		register(m.AwayTeam, m.AwayCrestURL)
	}

	for _, m := range matches {
		if !m.Finished() || m.HomeTeam == nil || m.AwayTeam == nil {
			continue
		}
		home := index[*m.HomeTeam]
		away := index[*m.AwayTeam]
		hg, ag := *m.HomeScore, *m.AwayScore

		home.Played++
		away.Played++
		home.GoalsFor += hg
		home.GoalsAgainst += ag
		away.GoalsFor += ag
		away.GoalsAgainst += hg

		switch {
		case hg > ag:
			home.Won++
			away.Lost++
			home.Points += pointsForWin
		case hg < ag:
			away.Won++
			home.Lost++
			away.Points += pointsForWin
		default:
			home.Drawn++
			away.Drawn++
			home.Points += pointsForDraw
			away.Points += pointsForDraw
		}
	}

	standings := make([]models.GroupStanding, 0, len(order))
	for _, team := range order {
		entry := index[team]
		entry.GoalDifference = entry.GoalsFor - entry.GoalsAgainst
		standings = append(standings, *entry)
	}

	pins := make(map[string]int, len(overrides))
	for _, o := range overrides {
		pins[o.Team] = o.Position
	}

	SortStandings(standings, pins)

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// SortStandings orders entries by points, goal difference and goals for, all
// descending. Fully tied entries fall back to the pin map (lower pinned
// position first, pinned before unpinned), then to the team name.
func SortStandings(standings []models.GroupStanding, pins map[string]int) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		pinA, okA := pins[a.Team]
		pinB, okB := pins[b.Team]
		if okA && okB && pinA != pinB {
			return pinA < pinB
		}
		if okA != okB {
			return okA
		}
		return a.Team < b.Team
	})
}
