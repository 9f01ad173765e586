// Package executor runs the one-shot auto-bet pipeline for a single race:
// load predictions, fetch odds, run the fusion/bet-generation pipeline,
// convert to wire format, submit to the gateway, and record the outcome.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foie0222/baken-autobet/internal/betgen"
	"github.com/foie0222/baken-autobet/internal/convert"
	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/foie0222/baken-autobet/internal/gateway"
	"github.com/foie0222/baken-autobet/internal/kernel"
	"github.com/google/uuid"
)

// agreeTopN is the fixed lookahead the original pipeline uses to compute
// per-horse cross-source agreement counts, shared by every non-win
// generator (place/wide/quinella/exacta).
const agreeTopN = 4

// Result summarizes one executor run, mirroring the Lambda handler's
// response shape.
type Result struct {
	Status    string `json:"status"`
	BetsCount int    `json:"bets_count"`
	Reason    string `json:"reason,omitempty"`
	RaceID    string `json:"race_id,omitempty"`
}

// PredictionLoader loads every available source's Prediction for a race.
// Declared here (rather than importing internal/repository) so a fake can
// stand in for the Redis-backed store in tests.
type PredictionLoader interface {
	GetAll(ctx context.Context, raceID string) (map[domain.SourceName]domain.Prediction, error)
}

// OrderRepository persists a PurchaseOrder's creation and status transitions.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.PurchaseOrder) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, errMsg *string) error
}

// CredentialsLoader fetches a target user's gateway credentials.
type CredentialsLoader interface {
	GetByUserID(ctx context.Context, userID string) (domain.GatewayCredentials, error)
}

// OddsFetcher retrieves the current MarketOdds for a race.
type OddsFetcher interface {
	FetchOdds(ctx context.Context, raceID string) (domain.MarketOdds, error)
}

// GatewaySubmitter submits bet lines to the betting gateway.
type GatewaySubmitter interface {
	Submit(ctx context.Context, creds domain.GatewayCredentials, lines []domain.IpatBetLine) (gateway.SubmitResult, error)
}

// BetExecutor runs the six-phase pipeline for one race.
type BetExecutor struct {
	predictions PredictionLoader
	orders      OrderRepository
	creds       CredentialsLoader
	odds        OddsFetcher
	gw          GatewaySubmitter
	constants   kernel.Constants
	logger      *slog.Logger
}

// New builds a BetExecutor.
func New(
	predictions PredictionLoader,
	orders OrderRepository,
	creds CredentialsLoader,
	odds OddsFetcher,
	gw GatewaySubmitter,
	constants kernel.Constants,
	logger *slog.Logger,
) *BetExecutor {
	return &BetExecutor{
		predictions: predictions,
		orders:      orders,
		creds:       creds,
		odds:        odds,
		gw:          gw,
		constants:   constants,
		logger:      logger,
	}
}

// Run executes the full pipeline for raceID under targetUserID. It never
// panics outward — callers running it inside a scheduled goroutine should
// still wrap it with their own panic recovery, matching the rest of this
// codebase's loop idiom.
func (e *BetExecutor) Run(ctx context.Context, raceID, targetUserID string) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{}
			err = fmt.Errorf("executor.Run: panic: %v", rec)
		}
		if err != nil {
			e.logger.Error("executor run failed", "race_id", raceID, "err", err)
		}
	}()

	e.logger.Info("executor started", "race_id", raceID)

	// Phase 1: load predictions.
	bySource, err := e.predictions.GetAll(ctx, raceID)
	if err != nil {
		return Result{}, fmt.Errorf("executor.Run: load predictions: %w", err)
	}
	if len(bySource) < 2 {
		e.logger.Warn("insufficient prediction sources", "race_id", raceID, "count", len(bySource))
		return Result{Status: "ok", BetsCount: 0, Reason: "insufficient_sources"}, nil
	}

	// Phase 2: fetch odds.
	marketOdds, err := e.odds.FetchOdds(ctx, raceID)
	if err != nil {
		return Result{}, fmt.Errorf("executor.Run: fetch odds: %w", err)
	}

	// Phase 3: run the fusion + bet-generation pipeline.
	bets := e.runPipeline(bySource, marketOdds)
	if len(bets) == 0 {
		e.logger.Info("no bets generated", "race_id", raceID)
		return Result{Status: "ok", BetsCount: 0, Reason: "no_bets"}, nil
	}

	// Phase 4: convert to wire format.
	lines, err := convert.ToIpatBetLines(raceID, bets)
	if err != nil {
		return Result{}, fmt.Errorf("executor.Run: convert bet lines: %w", err)
	}

	// Phase 5 & 6: submit and finalize.
	if err := e.submit(ctx, raceID, targetUserID, lines); err != nil {
		return Result{}, fmt.Errorf("executor.Run: submit: %w", err)
	}

	e.logger.Info("executor completed", "race_id", raceID, "bets_count", len(lines))
	return Result{Status: "ok", BetsCount: len(lines), RaceID: raceID}, nil
}

// Preview runs phases 1–4 of the pipeline (load, fetch odds, fuse+generate,
// convert) without submitting to the gateway or touching OrderStore. Used
// by the operator CLI's dry-run inspection.
func (e *BetExecutor) Preview(ctx context.Context, raceID string) ([]domain.BetProposal, []domain.IpatBetLine, error) {
	bySource, err := e.predictions.GetAll(ctx, raceID)
	if err != nil {
		return nil, nil, fmt.Errorf("executor.Preview: load predictions: %w", err)
	}
	if len(bySource) < 2 {
		return nil, nil, nil
	}

	marketOdds, err := e.odds.FetchOdds(ctx, raceID)
	if err != nil {
		return nil, nil, fmt.Errorf("executor.Preview: fetch odds: %w", err)
	}

	bets := e.runPipeline(bySource, marketOdds)
	if len(bets) == 0 {
		return nil, nil, nil
	}

	lines, err := convert.ToIpatBetLines(raceID, bets)
	if err != nil {
		return nil, nil, fmt.Errorf("executor.Preview: convert bet lines: %w", err)
	}
	return bets, lines, nil
}

// runPipeline reproduces the fixed win-branch/place-branch weighting and
// generator invocation order: win, then place, wide, quinella, exacta.
func (e *BetExecutor) runPipeline(bySource map[domain.SourceName]domain.Prediction, odds domain.MarketOdds) []domain.BetProposal {
	var all []domain.BetProposal

	present := presentSources(bySource)

	// Win branch.
	winProbs, winWeights := e.sourceProbsAndWeights(bySource, present, kernel.WeightsFor(e.constants.WinWeights, present))
	if len(winProbs) >= 2 {
		combined := kernel.LogOpinionPool(winProbs, winWeights)
		if len(combined) > 0 && len(odds.Win) > 0 {
			market := kernel.MarketImpliedProbs(odds.Win)
			all = append(all, betgen.GenerateWin(combined, market, odds.Win)...)
		}
	}

	// Place/wide/quinella/exacta branch.
	placeProbs, placeWeights := e.sourceProbsAndWeights(bySource, present, kernel.WeightsFor(e.constants.PlaceWeights, present))
	if len(placeProbs) >= 2 {
		combined := kernel.LogOpinionPool(placeProbs, placeWeights)
		if len(combined) == 0 {
			return all
		}
		agree := kernel.ComputeAgreeCounts(placeProbs, agreeTopN)

		if len(odds.Place) > 0 {
			all = append(all, betgen.GeneratePlace(combined, agree, odds.Place)...)
		}
		if len(odds.QuinellaPlace) > 0 {
			all = append(all, betgen.GenerateWide(combined, agree, odds.QuinellaPlace)...)
		}
		if len(odds.Quinella) > 0 {
			all = append(all, betgen.GenerateQuinella(combined, agree, odds.Quinella)...)
			all = append(all, betgen.GenerateExacta(combined, agree, odds.Quinella)...)
		}
	}

	return all
}

// sourceProbsAndWeights builds the per-source softmax probability maps, in
// domain.AllSources order restricted to present, alongside their
// corresponding renormalized weight (from a map keyed by source name).
func (e *BetExecutor) sourceProbsAndWeights(bySource map[domain.SourceName]domain.Prediction, present []domain.SourceName, weightBySource map[domain.SourceName]float64) ([]map[int]float64, []float64) {
	var probs []map[int]float64
	var weights []float64
	for _, src := range present {
		p := bySource[src]
		beta := e.constants.Betas[src]
		probs = append(probs, kernel.SourceToProbs(p.Entries, beta))
		weights = append(weights, weightBySource[src])
	}
	return probs, weights
}

func presentSources(bySource map[domain.SourceName]domain.Prediction) []domain.SourceName {
	out := make([]domain.SourceName, 0, len(bySource))
	for _, src := range domain.AllSources {
		if _, ok := bySource[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// submit loads gateway credentials, then builds and persists a
// PurchaseOrder and submits it to the gateway, recording the final outcome.
// Credentials are loaded before any order exists: a missing/invalid
// credential is a ConfigurationError and leaves no order record at all,
// since nothing was ever submitted.
func (e *BetExecutor) submit(ctx context.Context, raceID, targetUserID string, lines []domain.IpatBetLine) error {
	creds, err := e.creds.GetByUserID(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("%w: load gateway credentials: %w", domain.ErrConfigurationError, err)
	}
	defer creds.Zero()

	now := time.Now()
	order := domain.NewPurchaseOrder(targetUserID, raceID, lines, now)
	if err := e.orders.Create(ctx, order); err != nil {
		return fmt.Errorf("persist pending order: %w", err)
	}

	if err := order.MarkSubmitted(time.Now()); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if err := e.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusSubmitted, nil); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}

	_, submitErr := e.gw.Submit(ctx, creds, lines)
	if submitErr != nil {
		reason := submitErr.Error()
		if err := order.MarkFailed(reason, time.Now()); err != nil {
			e.logger.Error("order state transition failed after gateway error", "order_id", order.OrderID, "err", err)
		}
		if err := e.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusFailed, &reason); err != nil {
			e.logger.Error("failed to persist FAILED status", "order_id", order.OrderID, "err", err)
		}
		return fmt.Errorf("gateway submission failed: %w", submitErr)
	}

	if err := order.MarkCompleted(time.Now()); err != nil {
		e.logger.Error("order state transition failed after gateway success", "order_id", order.OrderID, "err", err)
	}
	if err := e.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusCompleted, nil); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	return nil
}
