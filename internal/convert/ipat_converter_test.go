package convert

import (
	"testing"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestToIpatBetLinesMapsFieldsFromRaceID(t *testing.T) {
	proposals := []domain.BetProposal{
		{BetType: domain.BetTypeWin, HorseNumbers: []int{3}, AmountYen: 300},
	}
	lines, err := ToIpatBetLines("202602080811", proposals)
	if assert.NoError(t, err) && assert.Len(t, lines, 1) {
		l := lines[0]
		assert.Equal(t, "20260208", l.Opdt)
		assert.Equal(t, domain.VenueKyoto, l.VenueCode)
		assert.Equal(t, 11, l.RaceNumber)
		assert.Equal(t, domain.IpatTansyo, l.BetType)
		assert.Equal(t, "03", l.Number)
		assert.Equal(t, 300, l.Amount)
	}
}

func TestToIpatBetLinesPreservesExactaOrder(t *testing.T) {
	proposals := []domain.BetProposal{
		{BetType: domain.BetTypeExacta, HorseNumbers: []int{7, 3}, AmountYen: 100},
	}
	lines, err := ToIpatBetLines("202602080811", proposals)
	if assert.NoError(t, err) && assert.Len(t, lines, 1) {
		assert.Equal(t, "07-03", lines[0].Number)
		assert.Equal(t, domain.IpatUmatan, lines[0].BetType)
	}
}

func TestToIpatBetLinesRejectsInvalidRaceID(t *testing.T) {
	_, err := ToIpatBetLines("not-a-race-id", nil)
	assert.Error(t, err)
}
