package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceName identifies one of the fixed set of four prediction sources.
type SourceName string

const (
	SourceUmamax          SourceName = "umamax"
	SourceMuryouKeibaAI   SourceName = "muryou-keiba-ai"
	SourceKeibaAIAthena   SourceName = "keiba-ai-athena"
	SourceKeibaAINavi     SourceName = "keiba-ai-navi"
)

// AllSources lists the four prediction sources in the fixed order the
// backtest-derived constants are keyed against.
var AllSources = []SourceName{SourceUmamax, SourceMuryouKeibaAI, SourceKeibaAIAthena, SourceKeibaAINavi}

// PredictionTTL is how long a Prediction record remains valid after scraping.
const PredictionTTL = 7 * 24 * time.Hour

// PredictionEntry is one horse's ranked forecast from a single source.
type PredictionEntry struct {
	HorseNumber int             `json:"horse_number"`
	Rank        int             `json:"rank"`
	Score       decimal.Decimal `json:"score"`
}

// Prediction is an immutable, source-scoped forecast for one race.
type Prediction struct {
	RaceID     string             `json:"race_id"`
	Source     SourceName         `json:"source"`
	Entries    []PredictionEntry  `json:"predictions"`
	Venue      string             `json:"venue"`
	RaceNumber int                `json:"race_number"`
	ScrapedAt  time.Time          `json:"scraped_at"`
	TTL        time.Time          `json:"-"`
}

// Validate checks the rank/score/horse-number invariants: ranks run 1..N
// without gaps, scores are monotone non-increasing with rank, and every
// horse_number falls in [1,18].
func (p *Prediction) Validate() error {
	if len(p.Entries) == 0 {
		return fmt.Errorf("prediction: empty entries for race %s source %s", p.RaceID, p.Source)
	}
	byRank := make(map[int]PredictionEntry, len(p.Entries))
	for _, e := range p.Entries {
		if e.HorseNumber < 1 || e.HorseNumber > 18 {
			return fmt.Errorf("prediction: horse_number %d out of range [1,18]", e.HorseNumber)
		}
		if _, dup := byRank[e.Rank]; dup {
			return fmt.Errorf("prediction: duplicate rank %d", e.Rank)
		}
		byRank[e.Rank] = e
	}
	for i := 1; i <= len(p.Entries); i++ {
		if _, ok := byRank[i]; !ok {
			return fmt.Errorf("prediction: rank sequence has a gap at %d", i)
		}
	}
	var prevScore decimal.Decimal
	for i := 1; i <= len(p.Entries); i++ {
		e := byRank[i]
		if i > 1 && e.Score.GreaterThan(prevScore) {
			return fmt.Errorf("prediction: score at rank %d (%s) exceeds rank %d (%s)", i, e.Score, i-1, prevScore)
		}
		prevScore = e.Score
	}
	return nil
}

// Expired reports whether this prediction's TTL has elapsed as of now.
func (p *Prediction) Expired(now time.Time) bool {
	return !p.TTL.IsZero() && now.After(p.TTL)
}
