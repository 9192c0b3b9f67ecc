package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

func knockoutLeg(id, leg int, home, away string, homeScore, awayScore int, shootout *string) *models.Match {
	pos := 1
	return &models.Match{
		ID:             id,
		TournamentID:   1,
		Phase:          models.PhaseQuarter,
		HomeTeam:       &home,
		AwayTeam:       &away,
		BracketPos:     &pos,
		Leg:            leg,
		HomeScore:      &homeScore,
		AwayScore:      &awayScore,
		ShootoutWinner: shootout,
		Status:         models.MatchStatusFinished,
	}
}

func TestResolveTieSingleLeg(t *testing.T) {
	outcome := ResolveTie([]*models.Match{knockoutLeg(1, 1, "France", "England", 2, 1, nil)})
	require.False(t, outcome.Pending)
	assert.Equal(t, "France", outcome.Winner)
	assert.Equal(t, "England", outcome.Loser)
}

func TestResolveTieSingleLegShootout(t *testing.T) {
	winner := "Croatia"
	outcome := ResolveTie([]*models.Match{knockoutLeg(1, 1, "Japan", "Croatia", 1, 1, &winner)})
	require.False(t, outcome.Pending)
	assert.Equal(t, "Croatia", outcome.Winner)
	assert.Equal(t, "Japan", outcome.Loser)
}

func TestResolveTieAggregateAcrossLegs(t *testing.T) {
	legs := []*models.Match{
		knockoutLeg(1, 1, "Milan", "Inter", 0, 2, nil),
		knockoutLeg(2, 2, "Inter", "Milan", 1, 2, nil),
	}
	// Aggregate: Inter 3, Milan 2.
	outcome := ResolveTie(legs)
	require.False(t, outcome.Pending)
	assert.Equal(t, "Inter", outcome.Winner)
	assert.Equal(t, "Milan", outcome.Loser)
}

func TestResolveTieLevelAggregateUsesShootoutFromEitherLeg(t *testing.T) {
	winner := "Milan"
	legs := []*models.Match{
		knockoutLeg(1, 1, "Milan", "Inter", 1, 1, nil),
		knockoutLeg(2, 2, "Inter", "Milan", 2, 2, &winner),
	}
	outcome := ResolveTie(legs)
	require.False(t, outcome.Pending)
	assert.Equal(t, "Milan", outcome.Winner)
}

func TestResolveTieLevelAggregateWithoutShootoutIsPending(t *testing.T) {
	legs := []*models.Match{
		knockoutLeg(1, 1, "Milan", "Inter", 1, 1, nil),
		knockoutLeg(2, 2, "Inter", "Milan", 0, 0, nil),
	}
	outcome := ResolveTie(legs)
	require.True(t, outcome.Pending)
	assert.NotEmpty(t, outcome.Reason)
	assert.Empty(t, outcome.Winner)
}

func TestResolveTieWaitsForAllLegs(t *testing.T) {
	home, away := "Milan", "Inter"
	unfinished := &models.Match{
		ID:       2,
		Phase:    models.PhaseQuarter,
		HomeTeam: &away,
		AwayTeam: &home,
		Leg:      2,
		Status:   models.MatchStatusScheduled,
	}
	legs := []*models.Match{
		knockoutLeg(1, 1, home, away, 3, 0, nil),
		unfinished,
	}
	outcome := ResolveTie(legs)
	assert.True(t, outcome.Pending)
}

func TestResolveTieIgnoresShootoutWinnerFromOutsideTheTie(t *testing.T) {
	stranger := "Brazil"
	legs := []*models.Match{
		knockoutLeg(1, 1, "Milan", "Inter", 1, 1, &stranger),
	}
	outcome := ResolveTie(legs)
	assert.True(t, outcome.Pending)
}

func TestResolveTieUnresolvedSlotsArePending(t *testing.T) {
	score := 1
	pending := &models.Match{
		ID:        1,
		Phase:     models.PhaseSemi,
		HomeScore: &score,
		AwayScore: &score,
		Status:    models.MatchStatusFinished,
	}
	outcome := ResolveTie([]*models.Match{pending})
	assert.True(t, outcome.Pending)
}

func TestResolveTieNoLegs(t *testing.T) {
	assert.True(t, ResolveTie(nil).Pending)
}
