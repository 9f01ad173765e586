package kernel

import (
	"math"
	"testing"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sumOf(m map[int]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := Softmax([]float64{80, 70, 60, 50, 40}, 0.07)
	total := 0.0
	for _, p := range probs {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-10)
	assert.Len(t, probs, 5)
}

func TestSoftmaxMonotoneWithPositiveBeta(t *testing.T) {
	probs := Softmax([]float64{80, 70, 60}, 0.07)
	assert.Greater(t, probs[0], probs[1])
	assert.Greater(t, probs[1], probs[2])
}

func TestSoftmaxBetaZeroIsUniform(t *testing.T) {
	probs := Softmax([]float64{80, 70, 60}, 0.0)
	assert.InDelta(t, probs[0], probs[1], 1e-10)
	assert.InDelta(t, probs[1], probs[2], 1e-10)
}

func TestSoftmaxMatchesReferenceFormula(t *testing.T) {
	scores := []float64{90, 75, 60, 45, 30}
	beta := 0.070031
	probs := Softmax(scores, beta)

	total := 0.0
	exps := make([]float64, len(scores))
	for i, s := range scores {
		exps[i] = math.Exp(beta * (s - 90))
		total += exps[i]
	}
	for i := range scores {
		assert.InDelta(t, exps[i]/total, probs[i], 1e-15)
	}
}

func TestSourceToProbsPreservesHorseNumbers(t *testing.T) {
	entries := []domain.PredictionEntry{
		{HorseNumber: 3, Rank: 1, Score: decimal.NewFromInt(80)},
		{HorseNumber: 7, Rank: 2, Score: decimal.NewFromInt(70)},
		{HorseNumber: 1, Rank: 3, Score: decimal.NewFromInt(60)},
	}
	result := SourceToProbs(entries, 0.07)
	assert.Len(t, result, 3)
	assert.Greater(t, result[3], result[7])
	assert.Greater(t, result[7], result[1])
	assert.InDelta(t, 1.0, sumOf(result), 1e-10)
}

func TestLogOpinionPoolEqualWeights(t *testing.T) {
	pd1 := map[int]float64{1: 0.5, 2: 0.3, 3: 0.2}
	pd2 := map[int]float64{1: 0.4, 2: 0.4, 3: 0.2}
	result := LogOpinionPool([]map[int]float64{pd1, pd2}, []float64{0.5, 0.5})
	assert.InDelta(t, 1.0, sumOf(result), 1e-10)
	assert.Greater(t, result[1], result[2])
}

func TestLogOpinionPoolStrictIntersection(t *testing.T) {
	pd1 := map[int]float64{1: 0.5, 2: 0.5}
	pd2 := map[int]float64{2: 0.6, 3: 0.4}
	result := LogOpinionPool([]map[int]float64{pd1, pd2}, []float64{0.5, 0.5})
	assert.Equal(t, map[int]float64{2: 1.0}, result)
}

func TestLogOpinionPoolEmptyIntersectionReturnsEmptyMap(t *testing.T) {
	pd1 := map[int]float64{1: 0.5}
	pd2 := map[int]float64{2: 0.5}
	result := LogOpinionPool([]map[int]float64{pd1, pd2}, []float64{0.5, 0.5})
	assert.Empty(t, result)
	assert.NotNil(t, result)
}

func TestMarketImpliedProbsConvertsOddsToProbability(t *testing.T) {
	oddsWin := map[string]domain.WinOdds{
		"1": {O: decimal.NewFromFloat(2.0)},
		"2": {O: decimal.NewFromFloat(5.0)},
		"3": {O: decimal.NewFromFloat(10.0)},
	}
	result := MarketImpliedProbs(oddsWin)
	assert.InDelta(t, 1.0, sumOf(result), 1e-10)
	assert.Greater(t, result[1], result[2])
	assert.Greater(t, result[2], result[3])
}

func TestMarketImpliedProbsDropsNonPositiveOdds(t *testing.T) {
	oddsWin := map[string]domain.WinOdds{
		"1": {O: decimal.NewFromFloat(2.0)},
		"2": {O: decimal.Zero},
	}
	result := MarketImpliedProbs(oddsWin)
	_, has2 := result[2]
	assert.False(t, has2)
	assert.Contains(t, result, 1)
}

func TestComputeAgreeCountsMatchesBacktestFixture(t *testing.T) {
	sourceProbs := []map[int]float64{
		{1: 0.3, 2: 0.25, 3: 0.2, 4: 0.15, 5: 0.1},
		{1: 0.3, 3: 0.25, 5: 0.2, 2: 0.15, 4: 0.1},
		{3: 0.3, 1: 0.25, 2: 0.2, 5: 0.15, 4: 0.1},
		{1: 0.3, 2: 0.25, 5: 0.2, 3: 0.15, 4: 0.1},
	}
	result := ComputeAgreeCounts(sourceProbs, 4)
	assert.Equal(t, 4, result[1])
	assert.Equal(t, 4, result[2])
	assert.Equal(t, 4, result[3])
	assert.Equal(t, 3, result[5])
	assert.Equal(t, 1, result[4])
}

func TestTopNBreaksTiesByAscendingHorseNumber(t *testing.T) {
	probs := map[int]float64{5: 0.3, 2: 0.3, 9: 0.3, 1: 0.1}
	top := TopN(probs, 3)
	assert.Equal(t, []int{2, 5, 9}, top)
}

func TestDefaultConstantsMatchBacktest(t *testing.T) {
	c := DefaultConstants()
	assert.Equal(t, 0.052082, c.Betas[domain.SourceUmamax])
	assert.Equal(t, 0.072791, c.Betas[domain.SourceMuryouKeibaAI])
	assert.Equal(t, 0.006745, c.Betas[domain.SourceKeibaAIAthena])
	assert.Equal(t, 0.070031, c.Betas[domain.SourceKeibaAINavi])
	assert.Equal(t, []float64{0.401, 0.035, 0.251, 0.313}, c.WinWeights)
	assert.Equal(t, []float64{0.314, 0.214, 0.309, 0.164}, c.PlaceWeights)
}

func TestLoadConstantsWithoutOverrideFileReturnsDefaults(t *testing.T) {
	c, err := LoadConstants("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultConstants().WinWeights, c.WinWeights)
}
