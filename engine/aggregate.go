package engine

import "github.com/rafacaro85/polla-mundialista-core/models"

// TieOutcome is the advancement decision for one bracket position.
type TieOutcome struct {
	Winner      string
	Loser       string
	WinnerCrest *string
	LoserCrest  *string

	// Pending means the decision cannot be taken yet; Reason says why (a leg
	// still to play, or a level aggregate with no recorded shootout winner).
	Pending bool
	Reason  string
}

func pending(reason string) TieOutcome {
	return TieOutcome{Pending: true, Reason: reason}
}

// ResolveTie determines the advancing team of a bracket position given all of
// its legs. A single leg resolves on its score, falling back to the recorded
// shootout winner when level. Two legs resolve on aggregate goals across both
// legs, falling back to a shootout winner recorded on either leg.
func ResolveTie(legs []*models.Match) TieOutcome {
	if len(legs) == 0 {
		return pending("no fixtures for bracket position")
	}

	for _, leg := range legs {
		if !leg.Finished() {
			return pending("a leg of this tie has not finished")
		}
		if leg.HomeTeam == nil || leg.AwayTeam == nil {
			return pending("a leg of this tie has unresolved team slots")
		}
	}

	first := legs[0]
	teamA, teamB := *first.HomeTeam, *first.AwayTeam
	crests := map[string]*string{}
	goals := map[string]int{teamA: 0, teamB: 0}

	for _, leg := range legs {
		crests[*leg.HomeTeam] = leg.HomeCrestURL
		crests[*leg.AwayTeam] = leg.AwayCrestURL
		goals[*leg.HomeTeam] += *leg.HomeScore
		goals[*leg.AwayTeam] += *leg.AwayScore
	}

	winner := ""
	switch {
	case goals[teamA] > goals[teamB]:
		winner = teamA
	case goals[teamB] > goals[teamA]:
		winner = teamB
	default:
		winner = shootoutWinner(legs, teamA, teamB)
		if winner == "" {
			return pending("level aggregate with no recorded shootout winner")
		}
	}

	loser := teamA
	if winner == teamA {
		loser = teamB
	}
	return TieOutcome{
		Winner:      winner,
		Loser:       loser,
		WinnerCrest: crests[winner],
		LoserCrest:  crests[loser],
	}
}

func shootoutWinner(legs []*models.Match, teamA, teamB string) string {
	for _, leg := range legs {
		if leg.ShootoutWinner == nil {
			continue
		}
		if w := *leg.ShootoutWinner; w == teamA || w == teamB {
			return w
		}
	}
	return ""
}
