package domain

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// WinOdds is a single horse's win-bet odds entry.
type WinOdds struct {
	O decimal.Decimal `json:"o"`
}

// PlaceOdds is a single horse's place-bet odds band.
type PlaceOdds struct {
	Min decimal.Decimal `json:"min"`
	Mid decimal.Decimal `json:"mid"`
	Max decimal.Decimal `json:"max"`
}

// MarketOdds is the snapshot of market-offered odds for one race, taken at
// executor invocation time. Wide and quinella odds are keyed by a
// hyphenated "min-max" pair string (ascending horse numbers).
type MarketOdds struct {
	Win           map[string]WinOdds         `json:"win"`
	Place         map[string]PlaceOdds       `json:"place"`
	QuinellaPlace map[string]decimal.Decimal `json:"quinella_place"` // wide
	Quinella      map[string]decimal.Decimal `json:"quinella"`
}

// HorseKey zero-pads a horse number to the wire format's two-digit form used
// by IpatBetLine.Number. Odds-map lookups must NOT use this — see
// OddsHorseKey.
func HorseKey(n int) string {
	return fmt.Sprintf("%02d", n)
}

// PairKey builds the "min-max" pair form used by IpatBetLine.Number,
// ordering the two horse numbers ascending and zero-padding each. Odds-map
// lookups must NOT use this — see OddsPairKey.
func PairKey(a, b int) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return HorseKey(lo) + "-" + HorseKey(hi)
}

// OddsHorseKey is the unpadded decimal-string key the odds feed uses for a
// single horse, e.g. "3" not "03".
func OddsHorseKey(n int) string {
	return strconv.Itoa(n)
}

// OddsPairKey is the unpadded "min-max" key the odds feed uses for
// wide/quinella entries, ordering the two horse numbers ascending, e.g.
// "3-7" not "03-07".
func OddsPairKey(a, b int) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return OddsHorseKey(lo) + "-" + OddsHorseKey(hi)
}
