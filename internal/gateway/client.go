// Package gateway submits IpatBetLine orders to the betting gateway and
// reports their outcome.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/foie0222/baken-autobet/internal/domain"
	"golang.org/x/time/rate"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// gatewayResponse is the envelope every gateway endpoint replies with.
// ret == "0" is success; any other value is a business-level rejection
// carrying msg as the reason.
type gatewayResponse struct {
	Ret     string            `json:"ret"`
	Msg     string            `json:"msg"`
	Results []json.RawMessage `json:"results"`
}

// SubmitResult is the gateway's response to an accepted bet submission.
type SubmitResult struct {
	Message string
}

type submitRequest struct {
	TncID    string          `json:"tncid"`
	TncPw    string          `json:"tncpw"`
	BetLines []submitBetLine `json:"bet_lines"`
}

// submitBetLine is IpatBetLine reshaped to the gateway's wire field names.
type submitBetLine struct {
	Opdt      string `json:"opdt"`
	VenueCode string `json:"venue_code"`
	Rno       string `json:"rno"`
	BetType   string `json:"bet_type"`
	Number    string `json:"number"`
	BetPrice  string `json:"bet_price"`
}

func toSubmitBetLine(l domain.IpatBetLine) submitBetLine {
	return submitBetLine{
		Opdt:      l.Opdt,
		VenueCode: string(l.VenueCode),
		Rno:       fmt.Sprintf("%02d", l.RaceNumber),
		BetType:   string(l.BetType),
		Number:    l.Number,
		BetPrice:  strconv.Itoa(l.Amount),
	}
}

type balanceRequest struct {
	TncID string `json:"tncid"`
	TncPw string `json:"tncpw"`
}

type balanceResult struct {
	Dedicated int `json:"bet_dedicated_balance"`
	Settlable int `json:"settle_possible_balance"`
	Bettable  int `json:"bet_balance"`
	Limit     int `json:"limit_vote_amount"`
}

// Client submits bets to the betting gateway, with rate limiting and
// exponential-backoff retries on transient failures. It never logs
// credential contents.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a Client against baseURL.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 3),
	}
}

// Submit posts bet lines to the gateway under the given credentials.
// Returns domain.ErrGatewayUnauthorized on a 401/403 response and
// domain.ErrSubmissionFailed for any other 4xx response (at once), for a
// 429/5xx response or network error once retries are exhausted, and for a
// 2xx response whose ret is not "0".
//
// A 2xx response that is never observed by the caller because the process
// crashes between the gateway accepting the bet and this function returning
// leaves the order in SUBMITTED with no COMPLETED/FAILED resolution; see
// domain.ErrPersistenceFailed's doc comment.
func (c *Client) Submit(ctx context.Context, creds domain.GatewayCredentials, lines []domain.IpatBetLine) (SubmitResult, error) {
	betLines := make([]submitBetLine, len(lines))
	for i, l := range lines {
		betLines[i] = toSubmitBetLine(l)
	}
	payload := submitRequest{
		TncID:    creds.TncID,
		TncPw:    creds.TncPw,
		BetLines: betLines,
	}

	var resp gatewayResponse
	url := c.baseURL + "/submit_bets"
	if err := c.postWithRetry(ctx, url, payload, &resp); err != nil {
		return SubmitResult{}, err
	}
	if resp.Ret != "0" {
		return SubmitResult{}, fmt.Errorf("%w: %s", domain.ErrSubmissionFailed, resp.Msg)
	}
	return SubmitResult{Message: resp.Msg}, nil
}

// Balance fetches the account balance for the gateway credentials given.
func (c *Client) Balance(ctx context.Context, creds domain.GatewayCredentials) (domain.Balance, error) {
	payload := balanceRequest{
		TncID: creds.TncID,
		TncPw: creds.TncPw,
	}
	var resp gatewayResponse
	url := c.baseURL + "/balance"
	if err := c.postWithRetry(ctx, url, payload, &resp); err != nil {
		return domain.Balance{}, err
	}
	if resp.Ret != "0" {
		return domain.Balance{}, fmt.Errorf("%w: %s", domain.ErrSubmissionFailed, resp.Msg)
	}
	if len(resp.Results) == 0 {
		return domain.Balance{}, fmt.Errorf("%w: empty balance results", domain.ErrSubmissionFailed)
	}
	var bal balanceResult
	if err := json.Unmarshal(resp.Results[0], &bal); err != nil {
		return domain.Balance{}, fmt.Errorf("gateway: decode balance result: %w", err)
	}
	return domain.Balance{
		Dedicated: bal.Dedicated,
		Settlable: bal.Settlable,
		Bettable:  bal.Bettable,
		Limit:     bal.Limit,
	}, nil
}

func (c *Client) postWithRetry(ctx context.Context, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: marshal body: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gateway: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return fmt.Errorf("gateway: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("%w: request failed after %d retries: %w", domain.ErrSubmissionFailed, maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			resp.Body.Close()
			return domain.ErrGatewayUnauthorized
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("gateway transient error", "status", resp.StatusCode, "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("%w: status %d after %d retries", domain.ErrSubmissionFailed, resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w: status %d: %s", domain.ErrSubmissionFailed, resp.StatusCode, string(respBody))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: exhausted %d retries", domain.ErrSubmissionFailed, maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
