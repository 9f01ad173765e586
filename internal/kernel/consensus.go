package kernel

import (
	"sort"

	"github.com/foie0222/baken-autobet/internal/domain"
)

// SourceRanks is one source's rank assignment, horse_number -> rank (1 = best).
type SourceRanks map[int]int

// AnalyzeConsensus classifies how much the given sources agree on their
// top-3 horses and flags horses whose per-source rank spread is wide.
// Requires at least two sources. Levels are tested in the fixed order
// full, mostly, partial, large_divergence and the first match wins;
// divergence horses are listed by ascending horse number.
func AnalyzeConsensus(bySource map[domain.SourceName]SourceRanks) domain.ConsensusResult {
	top3PerSource := make(map[domain.SourceName]map[int]int, len(bySource)) // horse -> rank, restricted to top-3
	for src, ranks := range bySource {
		top3PerSource[src] = top3ByRank(ranks)
	}

	agreedSet := map[int]bool{}
	first := true
	for _, t3 := range top3PerSource {
		horses := map[int]bool{}
		for h := range t3 {
			horses[h] = true
		}
		if first {
			for h := range horses {
				agreedSet[h] = true
			}
			first = false
			continue
		}
		for h := range agreedSet {
			if !horses[h] {
				delete(agreedSet, h)
			}
		}
	}

	agreed := sortedKeys(agreedSet)

	samePositions := len(agreed) == 3 && rankPositionsMatch(top3PerSource, agreed)

	var level domain.ConsensusLevel
	switch {
	case len(agreed) == 3 && samePositions:
		level = domain.ConsensusFull
	case len(agreed) == 3:
		level = domain.ConsensusMostly
	case len(agreed) == 2:
		level = domain.ConsensusPartial
	default:
		level = domain.ConsensusLargeDivergence
	}

	divergence := divergenceHorses(bySource, top3PerSource)

	return domain.ConsensusResult{
		Level:            level,
		AgreedTop3:       agreed,
		DivergenceHorses: divergence,
	}
}

// top3ByRank restricts a source's full rank map to the three lowest (best)
// ranks.
func top3ByRank(ranks SourceRanks) map[int]int {
	type hr struct {
		horse int
		rank  int
	}
	all := make([]hr, 0, len(ranks))
	for h, r := range ranks {
		all = append(all, hr{h, r})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].rank != all[j].rank {
			return all[i].rank < all[j].rank
		}
		return all[i].horse < all[j].horse
	})
	n := 3
	if n > len(all) {
		n = len(all)
	}
	out := make(map[int]int, n)
	for _, e := range all[:n] {
		out[e.horse] = e.rank
	}
	return out
}

// rankPositionsMatch reports whether every agreed horse occupies the same
// rank position across every source.
func rankPositionsMatch(top3PerSource map[domain.SourceName]map[int]int, agreed []int) bool {
	var refRanks map[int]int
	for _, t3 := range top3PerSource {
		refRanks = t3
		break
	}
	for _, t3 := range top3PerSource {
		for _, h := range agreed {
			if t3[h] != refRanks[h] {
				return false
			}
		}
	}
	return true
}

// divergenceHorses flags every horse appearing in the union of the sources'
// top-3 whose rank spread (max - min, looked up against each source's full
// rank list so a horse a source doesn't rate highly still contributes its
// true rank) is >= 3.
func divergenceHorses(bySource map[domain.SourceName]SourceRanks, top3PerSource map[domain.SourceName]map[int]int) []domain.DivergenceHorse {
	union := map[int]bool{}
	for _, t3 := range top3PerSource {
		for h := range t3 {
			union[h] = true
		}
	}

	horses := make([]int, 0, len(union))
	for h := range union {
		horses = append(horses, h)
	}
	sort.Ints(horses)

	var out []domain.DivergenceHorse
	for _, h := range horses {
		ranksPerSource := map[domain.SourceName]int{}
		for src, full := range bySource {
			if r, ok := full[h]; ok {
				ranksPerSource[src] = r
			}
		}
		min, max := -1, -1
		for _, r := range ranksPerSource {
			if min == -1 || r < min {
				min = r
			}
			if max == -1 || r > max {
				max = r
			}
		}
		gap := max - min
		if gap >= 3 {
			out = append(out, domain.DivergenceHorse{
				HorseNumber:    h,
				RanksPerSource: ranksPerSource,
				Gap:            gap,
			})
		}
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
