// Package main is the entry point for the long-running auto-bet
// orchestrator. It polls the race calendar on a fixed interval, registers a
// fire-once schedule per upcoming race, and fires a BetExecutor run for
// each schedule at its deadline. A slim health/readiness HTTP server runs
// alongside it for ops liveness probing.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/foie0222/baken-autobet/internal/config"
	"github.com/foie0222/baken-autobet/internal/executor"
	"github.com/foie0222/baken-autobet/internal/gateway"
	"github.com/foie0222/baken-autobet/internal/httpapi"
	"github.com/foie0222/baken-autobet/internal/kernel"
	"github.com/foie0222/baken-autobet/internal/oddsfeed"
	"github.com/foie0222/baken-autobet/internal/racecalendar"
	"github.com/foie0222/baken-autobet/internal/repository"
	"github.com/foie0222/baken-autobet/internal/scheduler"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting auto-bet orchestrator", "env", cfg.Runtime.Env)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}

	if err := runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// ── 3. Redis ──────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// ── 4. Collaborators ──────────────────────────────────────────────────────
	predictionStore := repository.NewPredictionStore(rdb)
	orderStore := repository.NewOrderStore(db)
	credentialsStore := repository.NewCredentialsStore(db)
	scheduleStore := repository.NewScheduleStore(rdb)
	oddsClient := oddsfeed.NewClient(cfg.Betting.OddsAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)
	gatewayClient := gateway.NewClient(cfg.Betting.GatewayAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)
	calendarClient := racecalendar.NewClient(cfg.Betting.RaceCalendarAPIURL, cfg.HTTP.RequestTimeout)

	constants, err := kernel.LoadConstants(cfg.Runtime.KernelConstantsPath)
	if err != nil {
		logger.Error("failed to load kernel constants", "err", err)
		os.Exit(1)
	}

	exec := executor.New(predictionStore, orderStore, credentialsStore, oddsClient, gatewayClient, constants, logger)

	runner := &deadlineExecutorRunner{
		exec:         exec,
		schedules:    scheduleStore,
		targetUserID: cfg.Betting.TargetUserID,
		logger:       logger,
	}

	orch := scheduler.New(calendarClient, scheduleStore, runner, scheduler.Config{
		TickInterval: time.Duration(cfg.Betting.OrchWindowMinutes) * time.Minute / 2,
		Lookahead:    time.Duration(cfg.Betting.OrchWindowMinutes) * time.Minute,
		FireLead:     time.Duration(cfg.Betting.FireLeadMinutes) * time.Minute,
	}, logger)

	// ── 5. Root context + signal handling ────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 6. Orchestrator ───────────────────────────────────────────────────────
	orch.Start(ctx)

	// ── 7. Health server ──────────────────────────────────────────────────────
	router := httpapi.SetupRouter(orch, cfg.IsProd())
	srv := &http.Server{
		Addr:    ":" + cfg.Runtime.HealthPort,
		Handler: router,
	}

	go func() {
		logger.Info("health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "err", err)
			stop()
		}
	}()

	// ── 8. Graceful shutdown ──────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining…")

	orch.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "err", err)
	}

	logger.Info("orchestrator stopped cleanly")
}

// deadlineExecutorRunner implements scheduler.ExecutorRunner by sleeping
// until the schedule's fire time in its own goroutine, then running the
// executor exactly once. Each race's wait is independent of every other's,
// matching the "executors run in parallel without shared mutable state"
// requirement.
type deadlineExecutorRunner struct {
	exec         *executor.BetExecutor
	schedules    *repository.ScheduleStore
	targetUserID string
	logger       *slog.Logger
}

func (r *deadlineExecutorRunner) RunAsync(ctx context.Context, raceID string, fireAt time.Time) error {
	go r.waitAndFire(ctx, raceID, fireAt)
	return nil
}

func (r *deadlineExecutorRunner) waitAndFire(ctx context.Context, raceID string, fireAt time.Time) {
	defer r.recoverAndLog(raceID)

	wait := time.Until(fireAt)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}

	runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := r.exec.Run(runCtx, raceID, r.targetUserID)
	if err != nil {
		r.logger.Error("executor run failed", "race_id", raceID, "err", err)
	} else {
		r.logger.Info("executor run finished", "race_id", raceID, "status", result.Status, "bets_count", result.BetsCount, "reason", result.Reason)
	}

	if err := r.schedules.MarkFired(context.Background(), raceID); err != nil {
		r.logger.Error("failed to mark schedule fired", "race_id", raceID, "err", err)
	}
}

func (r *deadlineExecutorRunner) recoverAndLog(raceID string) {
	if rec := recover(); rec != nil {
		r.logger.Error("PANIC recovered in executor runner", "race_id", raceID, "panic", rec)
	}
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially. Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(data)); err != nil {
			return err
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
