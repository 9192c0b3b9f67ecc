package models

import "time"

// Phase identifies one stage of the tournament. Phases are totally ordered;
// a phase can only unlock once its predecessor has completed.
type Phase string

const (
	PhaseGroup      Phase = "GROUP"
	PhaseRoundOf32  Phase = "ROUND_OF_32"
	PhaseRoundOf16  Phase = "ROUND_OF_16"
	PhaseQuarter    Phase = "QUARTER"
	PhaseSemi       Phase = "SEMI"
	PhaseThirdPlace Phase = "THIRD_PLACE"
	PhaseFinal      Phase = "FINAL"
)

var phaseOrder = []Phase{
	PhaseGroup,
	PhaseRoundOf32,
	PhaseRoundOf16,
	PhaseQuarter,
	PhaseSemi,
	PhaseThirdPlace,
	PhaseFinal,
}

// PhasesInOrder returns all phases in tournament order.
func PhasesInOrder() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Index returns the position of the phase in tournament order, or -1 for an
// unknown phase.
func (p Phase) Index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the successor phase, or false for the terminal phase.
func (p Phase) Next() (Phase, bool) {
	idx := p.Index()
	if idx < 0 || idx == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[idx+1], true
}

func (p Phase) IsKnockout() bool {
	return p.Valid() && p != PhaseGroup
}

// PhaseStatus is the gate record for one phase of one tournament.
type PhaseStatus struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Phase        Phase      `json:"phase" db:"phase"`
	Unlocked     bool       `json:"unlocked" db:"unlocked"`
	Completed    bool       `json:"completed" db:"completed"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty" db:"unlocked_at"`
}
