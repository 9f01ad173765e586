// Package betgen implements the five bet-type generators that turn a fused
// probability distribution, an agreement map, and a market odds snapshot
// into zero or more sized BetProposals. Every filter cascade and constant
// here is backtest-fixed; the constants below are the bit-exact values.
package betgen

import (
	"math"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/foie0222/baken-autobet/internal/kernel"
	"github.com/shopspring/decimal"
)

// Win-bet constants.
const (
	WinEdgeMin       = 0.03
	WinEdgeMax       = 0.05
	WinKellyFraction = 0.10
	WinBankrollYen   = 100_000
	WinEdgeTiltCenter = 0.035
)

// Place-bet constants.
const (
	PlaceTopN    = 4
	PlaceAgreeMin = 2
	PlaceMidLo    = 3.0
	PlaceMidHi    = 8.0
)

// Wide-bet constants.
const (
	WideTopN     = 5
	WideAgreeMin = 2
	WideOddsMin  = 10.0
)

// Quinella-bet constants.
const (
	QuinellaTopN     = 3
	QuinellaAgreeMin = 3
	QuinellaOddsMin  = 15.0
)

// Exacta-bet constants.
const (
	ExactaTopN      = 3
	ExactaAgreeMin  = 3
	ExactaQOddsMin  = 15.0
)

const flatBetYen = 100

// GenerateWin proposes a Kelly-scaled win bet for each horse whose edge
// (fused probability minus market-implied probability) clears the
// backtest-fixed band and whose full Kelly fraction is positive.
func GenerateWin(fused, market map[int]float64, odds map[string]domain.WinOdds) []domain.BetProposal {
	var out []domain.BetProposal
	for h, p := range fused {
		m, ok := market[h]
		if !ok {
			continue
		}
		edge := p - m
		if edge <= WinEdgeMin || edge > WinEdgeMax {
			continue
		}
		wo, ok := odds[domain.OddsHorseKey(h)]
		if !ok {
			continue
		}
		o, _ := wo.O.Float64()
		if o <= 1 {
			continue
		}
		kelly := (p*o - 1) / (o - 1)
		if kelly <= 0 {
			continue
		}
		stake := WinBankrollYen * kelly * WinKellyFraction * (edge / WinEdgeTiltCenter)
		amount := roundToNearest100(stake)
		if amount < 100 {
			amount = 100
		}
		out = append(out, domain.BetProposal{
			BetType:      domain.BetTypeWin,
			HorseNumbers: []int{h},
			AmountYen:    amount,
		})
	}
	return out
}

// GeneratePlace proposes a flat 100-yen place bet for each of the top-4
// fused horses that clears the agreement and mid-odds band filters.
func GeneratePlace(fused map[int]float64, agree map[int]int, odds map[string]domain.PlaceOdds) []domain.BetProposal {
	var out []domain.BetProposal
	for _, h := range kernel.TopN(fused, PlaceTopN) {
		if agree[h] < PlaceAgreeMin {
			continue
		}
		po, ok := odds[domain.OddsHorseKey(h)]
		if !ok {
			continue
		}
		mid, _ := po.Mid.Float64()
		if mid < PlaceMidLo || mid > PlaceMidHi {
			continue
		}
		out = append(out, domain.BetProposal{
			BetType:      domain.BetTypePlace,
			HorseNumbers: []int{h},
			AmountYen:    flatBetYen,
		})
	}
	return out
}

// GenerateWide proposes a flat 100-yen wide bet for every unordered pair
// among the top-5 fused horses whose agreement and wide odds clear the
// thresholds.
func GenerateWide(fused map[int]float64, agree map[int]int, odds map[string]decimal.Decimal) []domain.BetProposal {
	var out []domain.BetProposal
	top := kernel.TopN(fused, WideTopN)
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			h1, h2 := top[i], top[j]
			if agree[h1] < WideAgreeMin || agree[h2] < WideAgreeMin {
				continue
			}
			key := domain.OddsPairKey(h1, h2)
			o, ok := odds[key]
			if !ok {
				continue
			}
			v, _ := o.Float64()
			if v < WideOddsMin {
				continue
			}
			out = append(out, domain.BetProposal{
				BetType:      domain.BetTypeWide,
				HorseNumbers: sortedPair(h1, h2),
				AmountYen:    flatBetYen,
			})
		}
	}
	return out
}

// GenerateQuinella proposes a flat 100-yen quinella bet for every unordered
// pair among the top-3 fused horses whose agreement and quinella odds
// clear the thresholds.
func GenerateQuinella(fused map[int]float64, agree map[int]int, odds map[string]decimal.Decimal) []domain.BetProposal {
	var out []domain.BetProposal
	top := kernel.TopN(fused, QuinellaTopN)
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			h1, h2 := top[i], top[j]
			if agree[h1] < QuinellaAgreeMin || agree[h2] < QuinellaAgreeMin {
				continue
			}
			key := domain.OddsPairKey(h1, h2)
			o, ok := odds[key]
			if !ok {
				continue
			}
			v, _ := o.Float64()
			if v < QuinellaOddsMin {
				continue
			}
			out = append(out, domain.BetProposal{
				BetType:      domain.BetTypeQuinella,
				HorseNumbers: sortedPair(h1, h2),
				AmountYen:    flatBetYen,
			})
		}
	}
	return out
}

// GenerateExacta proposes a flat 100-yen exacta bet for every ordered pair
// among the top-3 fused horses (higher fused probability first) whose
// agreement and quinella odds (the wire-shared, order-independent key)
// clear the thresholds. Unlike the other generators, horse order is
// preserved as [first-place, second-place] rather than sorted.
func GenerateExacta(fused map[int]float64, agree map[int]int, odds map[string]decimal.Decimal) []domain.BetProposal {
	var out []domain.BetProposal
	top := kernel.TopN(fused, ExactaTopN)
	for i := 0; i < len(top); i++ {
		for j := 0; j < len(top); j++ {
			if i == j {
				continue
			}
			hUpper, hLower := top[i], top[j]
			if fused[hUpper] <= fused[hLower] {
				continue
			}
			if agree[hUpper] < ExactaAgreeMin || agree[hLower] < ExactaAgreeMin {
				continue
			}
			key := domain.OddsPairKey(hUpper, hLower)
			o, ok := odds[key]
			if !ok {
				continue
			}
			v, _ := o.Float64()
			if v < ExactaQOddsMin {
				continue
			}
			out = append(out, domain.BetProposal{
				BetType:      domain.BetTypeExacta,
				HorseNumbers: []int{hUpper, hLower},
				AmountYen:    flatBetYen,
			})
		}
	}
	return out
}

// roundToNearest100 rounds a float yen amount to the nearest 100.
func roundToNearest100(v float64) int {
	return int(math.Round(v/100)) * 100
}

func sortedPair(a, b int) []int {
	if a < b {
		return []int{a, b}
	}
	return []int{b, a}
}
