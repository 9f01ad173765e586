// Package oddsfeed fetches market odds snapshots for a race from the odds
// feed API, with rate limiting and exponential-backoff retries.
package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client fetches MarketOdds snapshots from the odds feed API.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a Client against baseURL, rate-limited to ratePerSec
// requests/second with a short burst allowance.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 5),
	}
}

// oddsResponse mirrors the odds feed API's wire shape for a race.
type oddsResponse struct {
	Win           map[string]struct {
		O string `json:"o"`
	} `json:"win"`
	Place map[string]struct {
		Min string `json:"min"`
		Mid string `json:"mid"`
		Max string `json:"max"`
	} `json:"place"`
	QuinellaPlace map[string]string `json:"quinella_place"`
	Quinella      map[string]string `json:"quinella"`
}

// FetchOdds retrieves the current MarketOdds for a race. Transient failures
// (5xx, 429, network errors) are retried up to maxRetries times with
// exponential backoff. Returns domain.ErrOddsUnavailable if the feed never
// succeeds.
func (c *Client) FetchOdds(ctx context.Context, raceID string) (domain.MarketOdds, error) {
	url := fmt.Sprintf("%s/races/%s/odds", c.baseURL, raceID)

	var resp oddsResponse
	if err := c.getWithRetry(ctx, url, &resp); err != nil {
		return domain.MarketOdds{}, fmt.Errorf("oddsfeed.FetchOdds: %w: %w", domain.ErrOddsUnavailable, err)
	}

	odds := domain.MarketOdds{
		Win:           map[string]domain.WinOdds{},
		Place:         map[string]domain.PlaceOdds{},
		QuinellaPlace: decimalMap(resp.QuinellaPlace),
		Quinella:      decimalMap(resp.Quinella),
	}
	for k, v := range resp.Win {
		o, err := parseDecimal(v.O)
		if err != nil {
			continue
		}
		odds.Win[k] = domain.WinOdds{O: o}
	}
	for k, v := range resp.Place {
		min, errMin := parseDecimal(v.Min)
		mid, errMid := parseDecimal(v.Mid)
		max, errMax := parseDecimal(v.Max)
		if errMin != nil || errMid != nil || errMax != nil {
			continue
		}
		odds.Place[k] = domain.PlaceOdds{Min: min, Mid: mid, Max: max}
	}
	return odds, nil
}

func (c *Client) getWithRetry(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("oddsfeed transient error", "status", resp.StatusCode, "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty decimal string")
	}
	return decimal.NewFromString(s)
}

func decimalMap(in map[string]string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		d, err := parseDecimal(v)
		if err != nil {
			continue
		}
		out[k] = d
	}
	return out
}
