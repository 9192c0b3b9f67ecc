package engine

import "github.com/rafacaro85/polla-mundialista-core/models"

// Fixed bracket point value per knockout phase. The third-place match pays
// like a semifinal since both are contested by the semifinal sides.
var bracketPointValues = map[models.Phase]int{
	models.PhaseRoundOf32:  2,
	models.PhaseRoundOf16:  3,
	models.PhaseQuarter:    6,
	models.PhaseSemi:       10,
	models.PhaseThirdPlace: 10,
	models.PhaseFinal:      20,
}

// BracketPoints returns the value credited for a correct bracket pick in the
// given phase, 0 for phases without bracket scoring (the group stage).
func BracketPoints(phase models.Phase) int {
	return bracketPointValues[phase]
}
