package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

func groupMatch(id int, home, away string, homeScore, awayScore int) *models.Match {
	tag := "A"
	return &models.Match{
		ID:           id,
		TournamentID: 1,
		Phase:        models.PhaseGroup,
		GroupTag:     &tag,
		HomeTeam:     &home,
		AwayTeam:     &away,
		HomeScore:    &homeScore,
		AwayScore:    &awayScore,
		Status:       models.MatchStatusFinished,
	}
}

func scheduledGroupMatch(id int, home, away string) *models.Match {
	tag := "A"
	return &models.Match{
		ID:           id,
		TournamentID: 1,
		Phase:        models.PhaseGroup,
		GroupTag:     &tag,
		HomeTeam:     &home,
		AwayTeam:     &away,
		Status:       models.MatchStatusScheduled,
	}
}

func rankOrder(standings []models.GroupStanding) []string {
	teams := make([]string, len(standings))
	for i, s := range standings {
		teams[i] = s.Team
	}
	return teams
}

func TestComputeGroupStandingsBasicTable(t *testing.T) {
	matches := []*models.Match{
		groupMatch(1, "Brazil", "Serbia", 2, 0),
		groupMatch(2, "Switzerland", "Cameroon", 1, 0),
		groupMatch(3, "Cameroon", "Serbia", 3, 3),
		groupMatch(4, "Brazil", "Switzerland", 1, 0),
	}

	standings := ComputeGroupStandings(matches, nil)
	require.Len(t, standings, 4)

	assert.Equal(t, []string{"Brazil", "Switzerland", "Cameroon", "Serbia"}, rankOrder(standings))

	brazil := standings[0]
	assert.Equal(t, 6, brazil.Points)
	assert.Equal(t, 2, brazil.Played)
	assert.Equal(t, 2, brazil.Won)
	assert.Equal(t, 3, brazil.GoalsFor)
	assert.Equal(t, 0, brazil.GoalsAgainst)
	assert.Equal(t, 3, brazil.GoalDifference)
	assert.Equal(t, 1, brazil.Rank)

	cameroon := standings[2]
	assert.Equal(t, 1, cameroon.Points)
	assert.Equal(t, 3, cameroon.Rank)
}

func TestComputeGroupStandingsIncludesTeamsWithoutFinishedMatches(t *testing.T) {
	matches := []*models.Match{
		groupMatch(1, "Spain", "Costa Rica", 7, 0),
		scheduledGroupMatch(2, "Germany", "Japan"),
	}

	standings := ComputeGroupStandings(matches, nil)
	require.Len(t, standings, 4)

	byTeam := map[string]models.GroupStanding{}
	for _, s := range standings {
		byTeam[s.Team] = s
	}
	assert.Zero(t, byTeam["Germany"].Played)
	assert.Zero(t, byTeam["Germany"].Points)
	assert.Zero(t, byTeam["Japan"].Played)
}

func TestComputeGroupStandingsTieBreakOrder(t *testing.T) {
	// Equal points; goal difference then goals for decide.
	matches := []*models.Match{
		groupMatch(1, "Alpha", "Beta", 3, 0),
		groupMatch(2, "Beta", "Gamma", 2, 0),
		groupMatch(3, "Gamma", "Alpha", 1, 0),
	}

	standings := ComputeGroupStandings(matches, nil)
	require.Len(t, standings, 3)

	// Alpha +2, Beta -1, Gamma -1; Beta 2 GF beats Gamma 1 GF.
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, rankOrder(standings))
}

func TestComputeGroupStandingsFullyTiedFallsBackToName(t *testing.T) {
	matches := []*models.Match{
		groupMatch(1, "Zulu", "Yankee", 1, 1),
	}

	standings := ComputeGroupStandings(matches, nil)
	require.Len(t, standings, 2)
	assert.Equal(t, []string{"Yankee", "Zulu"}, rankOrder(standings))
}

func TestComputeGroupStandingsOverridePinBreaksFullTie(t *testing.T) {
	matches := []*models.Match{
		groupMatch(1, "Zulu", "Yankee", 1, 1),
	}
	overrides := []models.GroupStandingOverride{
		{TournamentID: 1, GroupTag: "A", Team: "Zulu", Position: 1},
	}

	standings := ComputeGroupStandings(matches, overrides)
	require.Len(t, standings, 2)
	assert.Equal(t, []string{"Zulu", "Yankee"}, rankOrder(standings))
}

func TestComputeGroupStandingsOverrideCannotBeatComputedCriteria(t *testing.T) {
	matches := []*models.Match{
		groupMatch(1, "Alpha", "Beta", 2, 0),
	}
	overrides := []models.GroupStandingOverride{
		{TournamentID: 1, GroupTag: "A", Team: "Beta", Position: 1},
	}

	standings := ComputeGroupStandings(matches, overrides)
	require.Len(t, standings, 2)
	assert.Equal(t, "Alpha", standings[0].Team)
}

func TestComputeGroupStandingsEmptyInput(t *testing.T) {
	assert.Empty(t, ComputeGroupStandings(nil, nil))
}
