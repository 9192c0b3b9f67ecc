package engine

import "github.com/rafacaro85/polla-mundialista-core/models"

// MaxMatchPoints is the highest total a non-joker prediction can score.
const MaxMatchPoints = 7

// MatchPoints scores one prediction against a final result.
//
// +1 for the exact home goal count, +1 for the exact away goal count, +2 when
// the sign of the predicted margin matches the sign of the actual margin
// (this one rule covers correct winner and correct draw), and a +3 bonus for
// the exact score on top of the rules it already satisfies. A joker doubles
// the total.
func MatchPoints(actualHome, actualAway, predHome, predAway int, joker bool) int {
	points := 0
	if predHome == actualHome {
		points++
	}
	if predAway == actualAway {
		points++
	}
	if sign(predHome-predAway) == sign(actualHome-actualAway) {
		points += 2
	}
	if predHome == actualHome && predAway == actualAway {
		points += 3
	}
	if joker {
		points *= 2
	}
	return points
}

// PredictionPoints scores a prediction against its match, returning 0 unless
// the match is terminal with recorded scores.
func PredictionPoints(m *models.Match, p *models.Prediction) int {
	if m == nil || p == nil || !m.Finished() {
		return 0
	}
	return MatchPoints(*m.HomeScore, *m.AwayScore, p.HomeGoals, p.AwayGoals, p.Joker)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
