// Package convert maps BetProposals generated by the kernel/betgen
// pipeline into the gateway's IpatBetLine wire format.
package convert

import (
	"fmt"

	"github.com/foie0222/baken-autobet/internal/domain"
)

// ToIpatBetLines converts every proposal for one race into its IpatBetLine
// wire form. race_id supplies opdt (first 8 chars), venue_code (chars 9-10,
// via the course-code lookup table) and race_number (chars 11-12).
func ToIpatBetLines(raceID string, proposals []domain.BetProposal) ([]domain.IpatBetLine, error) {
	parsed, err := domain.ParseRaceID(raceID)
	if err != nil {
		return nil, fmt.Errorf("convert.ToIpatBetLines: %w", err)
	}
	venue, err := domain.VenueFromCourseCode(parsed.CourseCode)
	if err != nil {
		return nil, fmt.Errorf("convert.ToIpatBetLines: %w", err)
	}

	lines := make([]domain.IpatBetLine, 0, len(proposals))
	for _, p := range proposals {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("convert.ToIpatBetLines: %w", err)
		}
		ipatType, err := domain.IpatBetLineFromBetType(p.BetType)
		if err != nil {
			return nil, fmt.Errorf("convert.ToIpatBetLines: %w", err)
		}
		number := numberString(p.HorseNumbers)
		line, err := domain.NewIpatBetLine(parsed.Opdt(), venue, parsed.RaceNumber, ipatType, number, p.AmountYen)
		if err != nil {
			return nil, fmt.Errorf("convert.ToIpatBetLines: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// numberString zero-pads each horse number to 2 digits and hyphen-joins
// them in the order given — callers are responsible for ordering
// HorseNumbers correctly (finish order for exacta, ascending otherwise)
// before calling this.
func numberString(horses []int) string {
	out := ""
	for i, h := range horses {
		if i > 0 {
			out += "-"
		}
		out += domain.HorseKey(h)
	}
	return out
}
