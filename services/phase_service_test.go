package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

func finishedGroupFixture(id int, tag, home, away string, hs, as int) *models.Match {
	return &models.Match{
		ID:           id,
		TournamentID: 1,
		Phase:        models.PhaseGroup,
		GroupTag:     &tag,
		HomeTeam:     &home,
		AwayTeam:     &away,
		HomeScore:    &hs,
		AwayScore:    &as,
		Status:       models.MatchStatusFinished,
		KickoffAt:    time.Now().Add(-2 * time.Hour),
	}
}

func newPhaseServiceUnderTest(matchRepo *fakeMatchRepo, phaseRepo *fakePhaseRepo) PhaseService {
	return NewPhaseService(matchRepo, phaseRepo, testDispatcher(), testHub(), testLogger())
}

func TestCheckAndAdvanceCompletesAndUnlocksSuccessor(t *testing.T) {
	matchRepo := newFakeMatchRepo(
		finishedGroupFixture(1, "A", "Brazil", "Serbia", 2, 0),
		finishedGroupFixture(2, "A", "Serbia", "Brazil", 0, 1),
	)
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf32},
	)
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseGroup))

	group, err := phaseRepo.Get(context.Background(), 1, models.PhaseGroup)
	require.NoError(t, err)
	assert.True(t, group.Completed)

	next, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf32)
	require.NoError(t, err)
	assert.True(t, next.Unlocked)
	assert.NotNil(t, next.UnlockedAt)
}

func TestCheckAndAdvanceWaitsForUnfinishedMatches(t *testing.T) {
	pending := finishedGroupFixture(2, "A", "Serbia", "Brazil", 0, 0)
	pending.Status = models.MatchStatusScheduled
	pending.HomeScore = nil
	pending.AwayScore = nil

	matchRepo := newFakeMatchRepo(
		finishedGroupFixture(1, "A", "Brazil", "Serbia", 2, 0),
		pending,
	)
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf32},
	)
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseGroup))

	group, err := phaseRepo.Get(context.Background(), 1, models.PhaseGroup)
	require.NoError(t, err)
	assert.False(t, group.Completed)

	next, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf32)
	require.NoError(t, err)
	assert.False(t, next.Unlocked)
}

func TestCheckAndAdvanceIsIdempotent(t *testing.T) {
	matchRepo := newFakeMatchRepo(finishedGroupFixture(1, "A", "Brazil", "Serbia", 2, 0))
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf32},
	)
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseGroup))
	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseGroup))

	next, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf32)
	require.NoError(t, err)
	assert.True(t, next.Unlocked)
}

func TestCheckAndAdvanceSkipsAbsentPhases(t *testing.T) {
	matchRepo := newFakeMatchRepo()
	phaseRepo := newFakePhaseRepo()
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	assert.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseRoundOf32))
}

func TestCheckAndAdvanceWalksPastOmittedPhases(t *testing.T) {
	matchRepo := newFakeMatchRepo(
		finishedGroupFixture(1, "A", "Brazil", "Serbia", 2, 0),
		knockoutFixture(10, models.PhaseRoundOf16, "1A", "2B"),
	)
	// This format jumps straight from the groups to the round of 16; no
	// ROUND_OF_32 row was ever seeded.
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf16},
	)
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseGroup))

	r16, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf16)
	require.NoError(t, err)
	assert.True(t, r16.Unlocked)
}

func TestCheckAndAdvanceCompletesFixturelessPhase(t *testing.T) {
	matchRepo := newFakeMatchRepo(
		finishedGroupFixture(1, "A", "Brazil", "Serbia", 2, 0),
		knockoutFixture(10, models.PhaseRoundOf16, "1A", "2B"),
	)
	// A ROUND_OF_32 row exists but the format plays no matches in it.
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf32},
		&models.PhaseStatus{ID: 3, TournamentID: 1, Phase: models.PhaseRoundOf16},
	)
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseGroup))

	r32, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf32)
	require.NoError(t, err)
	assert.True(t, r32.Unlocked)
	assert.True(t, r32.Completed)

	r16, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf16)
	require.NoError(t, err)
	assert.True(t, r16.Unlocked)
}

func TestFixturelessPhaseWaitsForPredecessor(t *testing.T) {
	pending := finishedGroupFixture(1, "A", "Brazil", "Serbia", 0, 0)
	pending.Status = models.MatchStatusScheduled
	pending.HomeScore = nil
	pending.AwayScore = nil

	matchRepo := newFakeMatchRepo(pending)
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseGroup, Unlocked: true},
		&models.PhaseStatus{ID: 2, TournamentID: 1, Phase: models.PhaseRoundOf32},
		&models.PhaseStatus{ID: 3, TournamentID: 1, Phase: models.PhaseRoundOf16},
	)
	svc := newPhaseServiceUnderTest(matchRepo, phaseRepo)

	// Sweeping a locked fixtureless phase directly must not open the gate
	// while the groups are still running.
	require.NoError(t, svc.CheckAndAdvance(context.Background(), 1, models.PhaseRoundOf32))

	r32, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf32)
	require.NoError(t, err)
	assert.False(t, r32.Completed)

	r16, err := phaseRepo.Get(context.Background(), 1, models.PhaseRoundOf16)
	require.NoError(t, err)
	assert.False(t, r16.Unlocked)
}

func TestForceUnlock(t *testing.T) {
	phaseRepo := newFakePhaseRepo(
		&models.PhaseStatus{ID: 1, TournamentID: 1, Phase: models.PhaseRoundOf16},
	)
	svc := newPhaseServiceUnderTest(newFakeMatchRepo(), phaseRepo)

	require.NoError(t, svc.ForceUnlock(context.Background(), 1, models.PhaseRoundOf16))

	// A second unlock is refused rather than silently succeeding.
	err := svc.ForceUnlock(context.Background(), 1, models.PhaseRoundOf16)
	assert.ErrorIs(t, err, ErrPhaseAlreadyUnlocked)

	err = svc.ForceUnlock(context.Background(), 1, models.PhaseFinal)
	assert.ErrorIs(t, err, ErrPhaseStatusNotFound)

	err = svc.ForceUnlock(context.Background(), 1, models.Phase("WRONG"))
	assert.ErrorIs(t, err, ErrInvalidPhase)
}
