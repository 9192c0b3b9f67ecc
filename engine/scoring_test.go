package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

func TestMatchPoints(t *testing.T) {
	tests := []struct {
		name               string
		actualH, actualA   int
		predH, predA       int
		joker              bool
		want               int
	}{
		{name: "exact score", actualH: 2, actualA: 1, predH: 2, predA: 1, want: 7},
		{name: "exact score with joker", actualH: 2, actualA: 1, predH: 2, predA: 1, joker: true, want: 14},
		{name: "exact draw", actualH: 0, actualA: 0, predH: 0, predA: 0, want: 7},
		{name: "right winner only", actualH: 3, actualA: 1, predH: 2, predA: 0, want: 2},
		{name: "right winner and home goals", actualH: 3, actualA: 1, predH: 3, predA: 0, want: 3},
		{name: "right winner and away goals", actualH: 3, actualA: 1, predH: 2, predA: 1, want: 3},
		{name: "right draw wrong score", actualH: 1, actualA: 1, predH: 2, predA: 2, want: 2},
		{name: "one goal count but wrong winner", actualH: 3, actualA: 1, predH: 1, predA: 3, want: 1},
		{name: "everything wrong", actualH: 3, actualA: 0, predH: 0, predA: 2, want: 0},
		{name: "wrong winner with joker stays zero", actualH: 1, actualA: 0, predH: 0, predA: 1, joker: true, want: 0},
		{name: "away goal count only", actualH: 2, actualA: 0, predH: 0, predA: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchPoints(tt.actualH, tt.actualA, tt.predH, tt.predA, tt.joker)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchPointsNeverExceedsMax(t *testing.T) {
	for h := 0; h <= 4; h++ {
		for a := 0; a <= 4; a++ {
			for ph := 0; ph <= 4; ph++ {
				for pa := 0; pa <= 4; pa++ {
					got := MatchPoints(h, a, ph, pa, false)
					assert.GreaterOrEqual(t, got, 0)
					assert.LessOrEqual(t, got, MaxMatchPoints)
				}
			}
		}
	}
}

func TestPredictionPointsRequiresFinishedMatch(t *testing.T) {
	two, one := 2, 1
	prediction := &models.Prediction{HomeGoals: 2, AwayGoals: 1}

	scheduled := &models.Match{Status: models.MatchStatusScheduled}
	assert.Zero(t, PredictionPoints(scheduled, prediction))

	liveMatch := &models.Match{Status: models.MatchStatusLive, HomeScore: &two, AwayScore: &one}
	assert.Zero(t, PredictionPoints(liveMatch, prediction))

	missingScore := &models.Match{Status: models.MatchStatusFinished, HomeScore: &two}
	assert.Zero(t, PredictionPoints(missingScore, prediction))

	finished := &models.Match{Status: models.MatchStatusFinished, HomeScore: &two, AwayScore: &one}
	assert.Equal(t, 7, PredictionPoints(finished, prediction))
}

func TestBracketPoints(t *testing.T) {
	assert.Zero(t, BracketPoints(models.PhaseGroup))
	assert.Equal(t, 2, BracketPoints(models.PhaseRoundOf32))
	assert.Equal(t, 3, BracketPoints(models.PhaseRoundOf16))
	assert.Equal(t, 6, BracketPoints(models.PhaseQuarter))
	assert.Equal(t, 10, BracketPoints(models.PhaseSemi))
	assert.Equal(t, 10, BracketPoints(models.PhaseThirdPlace))
	assert.Equal(t, 20, BracketPoints(models.PhaseFinal))
}
