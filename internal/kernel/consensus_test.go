package kernel

import (
	"testing"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzeConsensusFullAgreement(t *testing.T) {
	bySource := map[domain.SourceName]SourceRanks{
		domain.SourceUmamax:        {3: 1, 7: 2, 1: 3, 5: 4},
		domain.SourceMuryouKeibaAI: {3: 1, 7: 2, 1: 3, 9: 4},
		domain.SourceKeibaAIAthena: {3: 1, 7: 2, 1: 3, 2: 4},
		domain.SourceKeibaAINavi:   {3: 1, 7: 2, 1: 3, 4: 4},
	}
	result := AnalyzeConsensus(bySource)
	assert.Equal(t, domain.ConsensusFull, result.Level)
	assert.Equal(t, []int{1, 3, 7}, result.AgreedTop3)
}

func TestAnalyzeConsensusMostlySameSetDifferentPositions(t *testing.T) {
	bySource := map[domain.SourceName]SourceRanks{
		domain.SourceUmamax:        {3: 1, 7: 2, 1: 3},
		domain.SourceMuryouKeibaAI: {7: 1, 3: 2, 1: 3},
	}
	result := AnalyzeConsensus(bySource)
	assert.Equal(t, domain.ConsensusMostly, result.Level)
}

func TestAnalyzeConsensusPartialTwoAgree(t *testing.T) {
	bySource := map[domain.SourceName]SourceRanks{
		domain.SourceUmamax:        {3: 1, 7: 2, 1: 3},
		domain.SourceMuryouKeibaAI: {3: 1, 7: 2, 9: 3},
	}
	result := AnalyzeConsensus(bySource)
	assert.Equal(t, domain.ConsensusPartial, result.Level)
}

func TestAnalyzeConsensusLargeDivergence(t *testing.T) {
	bySource := map[domain.SourceName]SourceRanks{
		domain.SourceUmamax:        {3: 1, 7: 2, 1: 3},
		domain.SourceMuryouKeibaAI: {9: 1, 2: 2, 4: 3},
	}
	result := AnalyzeConsensus(bySource)
	assert.Equal(t, domain.ConsensusLargeDivergence, result.Level)
}

func TestAnalyzeConsensusFlagsWideRankGaps(t *testing.T) {
	bySource := map[domain.SourceName]SourceRanks{
		domain.SourceUmamax:        {3: 1, 7: 2, 1: 3, 9: 4},
		domain.SourceMuryouKeibaAI: {3: 1, 1: 2, 9: 3, 7: 8},
	}
	result := AnalyzeConsensus(bySource)
	var got *domain.DivergenceHorse
	for i := range result.DivergenceHorses {
		if result.DivergenceHorses[i].HorseNumber == 7 {
			got = &result.DivergenceHorses[i]
		}
	}
	if assert.NotNil(t, got) {
		assert.GreaterOrEqual(t, got.Gap, 3)
	}
}
