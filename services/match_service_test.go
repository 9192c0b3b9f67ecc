package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

func newMatchServiceUnderTest(matchRepo *fakeMatchRepo, phaseRepo *fakePhaseRepo) MatchService {
	return NewMatchService(nil, matchRepo, newFakePredictionRepo(), phaseRepo,
		testLeaderboardCache(), testDispatcher(), testHub(), testLogger())
}

func TestListMatchesByPhaseHonorsPhaseGate(t *testing.T) {
	matchRepo := newFakeMatchRepo(
		finishedGroupFixture(1, "A", "Brazil", "Serbia", 2, 0),
		knockoutFixture(10, models.PhaseRoundOf16, "1A", "2B"),
	)
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf16},
	)
	svc := newMatchServiceUnderTest(matchRepo, phaseRepo)

	matches, err := svc.ListMatchesByPhase(context.Background(), 1, models.PhaseGroup, models.RolePlayer)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = svc.ListMatchesByPhase(context.Background(), 1, models.PhaseRoundOf16, models.RolePlayer)
	assert.ErrorIs(t, err, ErrPhaseLocked)

	// Administrators see locked phases.
	matches, err = svc.ListMatchesByPhase(context.Background(), 1, models.PhaseRoundOf16, models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = svc.ListMatchesByPhase(context.Background(), 1, models.Phase("WRONG"), models.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidPhase)

	_, err = svc.ListMatchesByPhase(context.Background(), 1, models.PhaseFinal, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrPhaseStatusNotFound)
}

func TestFinishMatchGuards(t *testing.T) {
	locked := upcomingMatch(2)
	locked.Locked = true
	matchRepo := newFakeMatchRepo(upcomingMatch(1), locked)
	svc := newMatchServiceUnderTest(matchRepo, newFakePhaseRepo())

	_, err := svc.FinishMatch(context.Background(), 1, FinishMatchInput{HomeScore: -1})
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = svc.FinishMatch(context.Background(), 999, FinishMatchInput{})
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = svc.FinishMatch(context.Background(), 2, FinishMatchInput{HomeScore: 1})
	assert.ErrorIs(t, err, ErrMatchLocked)

	// The shootout winner must be one of the two resolved teams.
	outsider := "Croatia"
	_, err = svc.FinishMatch(context.Background(), 1, FinishMatchInput{HomeScore: 1, AwayScore: 1, ShootoutWinner: &outsider})
	assert.ErrorIs(t, err, ErrShootoutWinnerUnknown)
}

func TestAdminUpdateValidatesInput(t *testing.T) {
	matchRepo := newFakeMatchRepo(upcomingMatch(1))
	svc := newMatchServiceUnderTest(matchRepo, newFakePhaseRepo())

	negative := -1
	_, err := svc.AdminUpdate(context.Background(), 1, AdminMatchUpdateInput{HomeScore: &negative})
	assert.ErrorIs(t, err, ErrInvalidScore)

	badSlot := 3
	_, err = svc.AdminUpdate(context.Background(), 1, AdminMatchUpdateInput{NextSlot: &badSlot})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = svc.AdminUpdate(context.Background(), 999, AdminMatchUpdateInput{})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestAdminUpdateRewiresBracketEdges(t *testing.T) {
	matchRepo := newFakeMatchRepo(upcomingMatch(1))
	svc := newMatchServiceUnderTest(matchRepo, newFakePhaseRepo())

	next, slot := 50, models.SlotAway
	updated, err := svc.AdminUpdate(context.Background(), 1, AdminMatchUpdateInput{
		NextMatchID: &next,
		NextSlot:    &slot,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.NextMatchID)
	assert.Equal(t, 50, *updated.NextMatchID)
	require.NotNil(t, updated.NextSlot)
	assert.Equal(t, models.SlotAway, *updated.NextSlot)
}
