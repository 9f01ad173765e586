package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/foie0222/baken-autobet/internal/gateway"
	"github.com/foie0222/baken-autobet/internal/kernel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── fakes ──────────────────────────────────────────────────────────────────

type fakePredictions struct {
	bySource map[domain.SourceName]domain.Prediction
	err      error
}

func (f *fakePredictions) GetAll(_ context.Context, _ string) (map[domain.SourceName]domain.Prediction, error) {
	return f.bySource, f.err
}

type fakeOrders struct {
	created []domain.PurchaseOrder
	statusHistory []domain.OrderStatus
}

func (f *fakeOrders) Create(_ context.Context, o *domain.PurchaseOrder) error {
	f.created = append(f.created, *o)
	return nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, _ uuid.UUID, status domain.OrderStatus, _ *string) error {
	f.statusHistory = append(f.statusHistory, status)
	return nil
}

type fakeCreds struct {
	creds domain.GatewayCredentials
	err   error
}

func (f *fakeCreds) GetByUserID(_ context.Context, _ string) (domain.GatewayCredentials, error) {
	return f.creds, f.err
}

type fakeOdds struct {
	odds domain.MarketOdds
	err  error
}

func (f *fakeOdds) FetchOdds(_ context.Context, _ string) (domain.MarketOdds, error) {
	return f.odds, f.err
}

type fakeGateway struct {
	result gateway.SubmitResult
	err    error
	calls  int
}

func (f *fakeGateway) Submit(_ context.Context, _ domain.GatewayCredentials, _ []domain.IpatBetLine) (gateway.SubmitResult, error) {
	f.calls++
	return f.result, f.err
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(h, rank int, score float64) domain.PredictionEntry {
	return domain.PredictionEntry{HorseNumber: h, Rank: rank, Score: decimal.NewFromFloat(score)}
}

// ── tests ──────────────────────────────────────────────────────────────────

func TestRunReturnsInsufficientSourcesWithFewerThanTwo(t *testing.T) {
	preds := &fakePredictions{bySource: map[domain.SourceName]domain.Prediction{
		domain.SourceUmamax: {RaceID: "r", Source: domain.SourceUmamax, Entries: []domain.PredictionEntry{entry(3, 1, 0.9)}},
	}}
	e := New(preds, &fakeOrders{}, &fakeCreds{}, &fakeOdds{}, &fakeGateway{}, kernel.DefaultConstants(), silentLogger())

	result, err := e.Run(context.Background(), "202602080811", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "insufficient_sources", result.Reason)
	assert.Zero(t, result.BetsCount)
}

func TestRunReturnsNoBetsWhenPipelineProducesNone(t *testing.T) {
	preds := &fakePredictions{bySource: map[domain.SourceName]domain.Prediction{
		domain.SourceUmamax:        {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.5)}},
		domain.SourceMuryouKeibaAI: {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.5)}},
	}}
	// No odds supplied at all -> every branch short-circuits.
	e := New(preds, &fakeOrders{}, &fakeCreds{}, &fakeOdds{odds: domain.MarketOdds{}}, &fakeGateway{}, kernel.DefaultConstants(), silentLogger())

	result, err := e.Run(context.Background(), "202602080811", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "no_bets", result.Reason)
}

func TestRunSubmitsAndCompletesOnGatewaySuccess(t *testing.T) {
	preds := &fakePredictions{bySource: map[domain.SourceName]domain.Prediction{
		domain.SourceUmamax:        {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.3)}},
		domain.SourceMuryouKeibaAI: {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.3)}},
	}}
	odds := domain.MarketOdds{
		Win: map[string]domain.WinOdds{
			"3": {O: decimal.NewFromFloat(2.273)},
			"7": {O: decimal.NewFromFloat(2.0)},
		},
	}
	orders := &fakeOrders{}
	gw := &fakeGateway{result: gateway.SubmitResult{Message: "ok"}}
	e := New(preds, orders, &fakeCreds{creds: domain.GatewayCredentials{TncID: "x"}}, &fakeOdds{odds: odds}, gw, kernel.DefaultConstants(), silentLogger())

	result, err := e.Run(context.Background(), "202602080811", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 1, gw.calls)
	require.Len(t, orders.created, 1)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusSubmitted, domain.OrderStatusCompleted}, orders.statusHistory)
}

func TestRunMarksOrderFailedOnGatewayError(t *testing.T) {
	preds := &fakePredictions{bySource: map[domain.SourceName]domain.Prediction{
		domain.SourceUmamax:        {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.3)}},
		domain.SourceMuryouKeibaAI: {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.3)}},
	}}
	odds := domain.MarketOdds{
		Win: map[string]domain.WinOdds{
			"3": {O: decimal.NewFromFloat(2.273)},
			"7": {O: decimal.NewFromFloat(2.0)},
		},
	}
	orders := &fakeOrders{}
	gw := &fakeGateway{err: assertErr("gateway down")}
	e := New(preds, orders, &fakeCreds{creds: domain.GatewayCredentials{TncID: "x"}}, &fakeOdds{odds: odds}, gw, kernel.DefaultConstants(), silentLogger())

	_, err := e.Run(context.Background(), "202602080811", "user-1")
	require.Error(t, err)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusSubmitted, domain.OrderStatusFailed}, orders.statusHistory)
}

func TestRunCreatesNoOrderOnCredentialsFailure(t *testing.T) {
	preds := &fakePredictions{bySource: map[domain.SourceName]domain.Prediction{
		domain.SourceUmamax:        {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.3)}},
		domain.SourceMuryouKeibaAI: {Entries: []domain.PredictionEntry{entry(3, 1, 0.9), entry(7, 2, 0.3)}},
	}}
	odds := domain.MarketOdds{
		Win: map[string]domain.WinOdds{
			"3": {O: decimal.NewFromFloat(2.273)},
			"7": {O: decimal.NewFromFloat(2.0)},
		},
	}
	orders := &fakeOrders{}
	gw := &fakeGateway{}
	e := New(preds, orders, &fakeCreds{err: assertErr("no credentials on file")}, &fakeOdds{odds: odds}, gw, kernel.DefaultConstants(), silentLogger())

	_, err := e.Run(context.Background(), "202602080811", "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigurationError)
	assert.Empty(t, orders.created)
	assert.Empty(t, orders.statusHistory)
	assert.Zero(t, gw.calls)
}

type assertErrT struct{ msg string }

func (e assertErrT) Error() string { return e.msg }

func assertErr(msg string) error { return assertErrT{msg: msg} }
