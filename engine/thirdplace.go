package engine

import (
	"fmt"
	"sort"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

// ThirdPlaceRank is the rank-3 team of one group inside the tournament-wide
// wildcard pool.
type ThirdPlaceRank struct {
	models.GroupStanding
	PoolRank int `json:"pool_rank"`
}

// WildcardPlaceholder returns the placeholder code the promotion engine
// resolves for the nth-best third-placed team (1-based).
func WildcardPlaceholder(n int) string {
	return fmt.Sprintf("3RD-%d", n)
}

// RankThirdPlaces pools the third-placed team of every group and re-ranks
// the pool with the standard tie-break criteria. The groups map is keyed by
// group tag; groups with fewer than three ranked teams are skipped. The
// caller consumes only the leading wildcardSlots entries.
func RankThirdPlaces(groups map[string][]models.GroupStanding) []ThirdPlaceRank {
	pool := make([]models.GroupStanding, 0, len(groups))
	for _, table := range groups {
		for _, entry := range table {
			if entry.Rank == 3 {
				pool = append(pool, entry)
				break
			}
		}
	}

	// Tags are iterated in map order above; sort the pool fully so the
	// result is deterministic regardless of map iteration.
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].GroupTag < pool[j].GroupTag })
	SortStandings(pool, nil)

	ranked := make([]ThirdPlaceRank, len(pool))
	for i, entry := range pool {
		ranked[i] = ThirdPlaceRank{GroupStanding: entry, PoolRank: i + 1}
	}
	return ranked
}
