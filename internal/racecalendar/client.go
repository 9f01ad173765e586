// Package racecalendar fetches upcoming race post times for the
// orchestrator's scheduling window.
package racecalendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// UpcomingRace is one race due to post within the orchestrator's lookahead
// window.
type UpcomingRace struct {
	RaceID   string    `json:"race_id"`
	PostTime time.Time `json:"post_time"`
}

// Client fetches the race calendar.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a Client against baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// UpcomingWithin returns every race whose post time falls within window of
// now, ordered by post time ascending.
func (c *Client) UpcomingWithin(ctx context.Context, window time.Duration) ([]UpcomingRace, error) {
	url := fmt.Sprintf("%s/races/upcoming?within_minutes=%d", c.baseURL, int(window.Minutes()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("racecalendar.UpcomingWithin: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("racecalendar.UpcomingWithin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("racecalendar.UpcomingWithin: status %d: %s", resp.StatusCode, string(body))
	}

	var races []UpcomingRace
	if err := json.NewDecoder(resp.Body).Decode(&races); err != nil {
		return nil, fmt.Errorf("racecalendar.UpcomingWithin: decode: %w", err)
	}
	sort.Slice(races, func(i, j int) bool {
		return races[i].PostTime.Before(races[j].PostTime)
	})
	return races, nil
}
