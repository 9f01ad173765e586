package kernel

import (
	"math"
	"sort"
	"strconv"

	"github.com/foie0222/baken-autobet/internal/domain"
)

// Softmax returns exp(beta*(s_i - max(s))) / sum_j exp(beta*(s_j - max(s)))
// for each score in scores. Subtracting the max before exponentiating is
// required both for numerical stability and to stay bit-identical with the
// reference implementation.
func Softmax(scores []float64, beta float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	exps := make([]float64, len(scores))
	total := 0.0
	for i, s := range scores {
		e := math.Exp(beta * (s - max))
		exps[i] = e
		total += e
	}
	out := make([]float64, len(scores))
	for i, e := range exps {
		out[i] = e / total
	}
	return out
}

// SourceToProbs applies Softmax over a single source's prediction entries,
// preserving the horse_number association.
func SourceToProbs(entries []domain.PredictionEntry, beta float64) map[int]float64 {
	scores := make([]float64, len(entries))
	for i, e := range entries {
		f, _ := e.Score.Float64()
		scores[i] = f
	}
	probs := Softmax(scores, beta)
	out := make(map[int]float64, len(entries))
	for i, e := range entries {
		out[e.HorseNumber] = probs[i]
	}
	return out
}

// LogOpinionPool fuses multiple per-source probability maps via a weighted
// geometric mean. weights must already be normalized to sum to 1 and must
// have the same length and ordering as probMaps. The result is restricted
// to the strict intersection of every input map's keys — a horse present
// in only a subset of sources is excluded entirely, by contract. Returns
// an empty map (never nil) if the intersection is empty.
func LogOpinionPool(probMaps []map[int]float64, weights []float64) map[int]float64 {
	out := map[int]float64{}
	if len(probMaps) == 0 {
		return out
	}

	// Intersection of all keys.
	keys := map[int]int{} // horse -> count of maps containing it
	for _, m := range probMaps {
		for h := range m {
			keys[h]++
		}
	}
	common := make([]int, 0)
	for h, count := range keys {
		if count == len(probMaps) {
			common = append(common, h)
		}
	}
	if len(common) == 0 {
		return out
	}

	raw := make(map[int]float64, len(common))
	total := 0.0
	for _, h := range common {
		logSum := 0.0
		for i, m := range probMaps {
			logSum += weights[i] * math.Log(m[h])
		}
		v := math.Exp(logSum)
		raw[h] = v
		total += v
	}
	for h, v := range raw {
		out[h] = v / total
	}
	return out
}

// MarketImpliedProbs converts win odds to implied probabilities via
// 1/o, renormalized. Entries with o <= 0 are dropped entirely.
func MarketImpliedProbs(winOdds map[string]domain.WinOdds) map[int]float64 {
	raw := map[int]float64{}
	total := 0.0
	for key, wo := range winOdds {
		o, _ := wo.O.Float64()
		if o <= 0 {
			continue
		}
		h, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		implied := 1.0 / o
		raw[h] = implied
		total += implied
	}
	out := make(map[int]float64, len(raw))
	if total == 0 {
		return out
	}
	for h, v := range raw {
		out[h] = v / total
	}
	return out
}

// ComputeAgreeCounts counts, per horse, in how many of the given per-source
// probability maps it appears within the top topN (ties broken by
// ascending horse_number for determinism).
func ComputeAgreeCounts(sourceProbs []map[int]float64, topN int) map[int]int {
	counts := map[int]int{}
	for _, m := range sourceProbs {
		for _, h := range TopN(m, topN) {
			counts[h]++
		}
	}
	return counts
}

// TopN returns the topN horse numbers from probs ranked descending by
// probability, ties broken by ascending horse_number.
func TopN(probs map[int]float64, n int) []int {
	horses := make([]int, 0, len(probs))
	for h := range probs {
		horses = append(horses, h)
	}
	sort.Slice(horses, func(i, j int) bool {
		pi, pj := probs[horses[i]], probs[horses[j]]
		if pi != pj {
			return pi > pj
		}
		return horses[i] < horses[j]
	})
	if n > len(horses) {
		n = len(horses)
	}
	return horses[:n]
}
