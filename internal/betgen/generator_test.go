package betgen

import (
	"testing"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func winOdds(v float64) map[string]domain.WinOdds {
	return map[string]domain.WinOdds{"3": {O: decimal.NewFromFloat(v)}}
}

func TestGenerateWinEdgeBoundaryExclusive(t *testing.T) {
	fused := map[int]float64{3: 0.25}
	market := map[int]float64{3: 0.22} // edge exactly 0.03 -> excluded (strict lower bound)
	bets := GenerateWin(fused, market, winOdds(4.8))
	assert.Empty(t, bets)
}

func TestGenerateWinEdgeBoundaryInclusiveUpper(t *testing.T) {
	fused := map[int]float64{3: 0.1}
	market := map[int]float64{3: 0.05} // edge exactly 0.05 -> included (inclusive upper bound)
	bets := GenerateWin(fused, market, winOdds(12.0))
	assert.NotEmpty(t, bets)
}

func TestGenerateWinEdgeJustAboveUpperExcluded(t *testing.T) {
	fused := map[int]float64{3: 0.25}
	market := map[int]float64{3: 0.19} // edge 0.06 -> excluded
	bets := GenerateWin(fused, market, winOdds(4.8))
	assert.Empty(t, bets)
}

func TestGenerateWinAmountIsMultipleOf100AndAtLeast100(t *testing.T) {
	fused := map[int]float64{3: 0.25}
	market := map[int]float64{3: 0.21} // edge 0.04
	bets := GenerateWin(fused, market, winOdds(4.8))
	if assert.Len(t, bets, 1) {
		assert.Equal(t, []int{3}, bets[0].HorseNumbers)
		assert.Zero(t, bets[0].AmountYen%100)
		assert.GreaterOrEqual(t, bets[0].AmountYen, 100)
	}
}

func TestGenerateWinSkipsNonPositiveKelly(t *testing.T) {
	// Odds of exactly 1/p produce a zero Kelly fraction.
	fused := map[int]float64{3: 0.25}
	market := map[int]float64{3: 0.21}
	bets := GenerateWin(fused, market, winOdds(4.0))
	assert.Empty(t, bets)
}

func TestGeneratePlaceBoundaryScenario(t *testing.T) {
	// Scenario 3 from the specification's seed tests.
	fused := map[int]float64{3: 0.4, 7: 0.3, 1: 0.2, 5: 0.1}
	agree := map[int]int{3: 4, 7: 3, 1: 3, 5: 1}
	odds := map[string]domain.PlaceOdds{
		"3": {Mid: decimal.NewFromFloat(1.55)},
		"7": {Mid: decimal.NewFromFloat(4.25)},
		"1": {Mid: decimal.NewFromFloat(3.5)},
		"5": {Mid: decimal.NewFromFloat(5.0)},
	}
	bets := GeneratePlace(fused, agree, odds)

	horses := map[int]bool{}
	for _, b := range bets {
		horses[b.HorseNumbers[0]] = true
	}
	assert.True(t, horses[7])
	assert.True(t, horses[1])
	assert.False(t, horses[3], "mid odds 1.55 below PlaceMidLo")
	assert.False(t, horses[5], "agreement count 1 below PlaceAgreeMin")
	assert.Len(t, bets, 2)
	for _, b := range bets {
		assert.Equal(t, 100, b.AmountYen)
	}
}

func TestGenerateWideSortsPairAscending(t *testing.T) {
	fused := map[int]float64{9: 0.3, 2: 0.25, 5: 0.2, 1: 0.15, 8: 0.1}
	agree := map[int]int{9: 2, 2: 2, 5: 2, 1: 2, 8: 2}
	odds := map[string]decimal.Decimal{
		domain.OddsPairKey(9, 2): decimal.NewFromFloat(12.0),
	}
	bets := GenerateWide(fused, agree, odds)
	if assert.Len(t, bets, 1) {
		assert.Equal(t, []int{2, 9}, bets[0].HorseNumbers)
	}
}

func TestGenerateExactaPreservesFinishOrder(t *testing.T) {
	// Scenario 4 from the specification's seed tests.
	fused := map[int]float64{3: 0.4, 7: 0.3, 1: 0.2}
	agree := map[int]int{3: 4, 7: 4, 1: 4}
	odds := map[string]decimal.Decimal{
		domain.OddsPairKey(3, 7): decimal.NewFromFloat(18.0),
		domain.OddsPairKey(1, 3): decimal.NewFromFloat(20.0),
		domain.OddsPairKey(1, 7): decimal.NewFromFloat(25.0),
	}
	bets := GenerateExacta(fused, agree, odds)
	assert.Len(t, bets, 3)
	assert.Equal(t, []int{3, 7}, bets[0].HorseNumbers)
	assert.Equal(t, []int{3, 1}, bets[1].HorseNumbers)
	assert.Equal(t, []int{7, 1}, bets[2].HorseNumbers)
}

func TestGenerateQuinellaRequiresHigherAgreement(t *testing.T) {
	fused := map[int]float64{3: 0.4, 7: 0.3, 1: 0.2}
	agree := map[int]int{3: 3, 7: 2, 1: 3} // 7 fails the agree>=3 threshold
	odds := map[string]decimal.Decimal{
		domain.OddsPairKey(3, 7): decimal.NewFromFloat(20.0),
		domain.OddsPairKey(1, 3): decimal.NewFromFloat(20.0),
		domain.OddsPairKey(1, 7): decimal.NewFromFloat(20.0),
	}
	bets := GenerateQuinella(fused, agree, odds)
	if assert.Len(t, bets, 1) {
		assert.Equal(t, []int{1, 3}, bets[0].HorseNumbers)
	}
}
