// Package main is the entry point for the one-shot auto-bet executor. It is
// invoked with a single race_id, runs the fusion/bet-generation/submission
// pipeline once, and exits — the long-lived process is the orchestrator
// (cmd/orchestrator), which schedules one executor run per upcoming race.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/foie0222/baken-autobet/internal/config"
	"github.com/foie0222/baken-autobet/internal/executor"
	"github.com/foie0222/baken-autobet/internal/gateway"
	"github.com/foie0222/baken-autobet/internal/kernel"
	"github.com/foie0222/baken-autobet/internal/oddsfeed"
	"github.com/foie0222/baken-autobet/internal/repository"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"
)

func main() {
	raceID := flag.String("race-id", "", "race_id to execute (YYYYMMDDVVRR)")
	flag.Parse()
	if *raceID == "" {
		slog.Error("missing required -race-id flag")
		os.Exit(1)
	}

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

	logger.Info("starting bet executor", "env", cfg.Runtime.Env, "race_id", *raceID)

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
	oddsClient := oddsfeed.NewClient(cfg.Betting.OddsAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)
	gatewayClient := gateway.NewClient(cfg.Betting.GatewayAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)

	constants, err := kernel.LoadConstants(cfg.Runtime.KernelConstantsPath)
	if err != nil {
		logger.Error("failed to load kernel constants", "err", err)
		os.Exit(1)
	}

	exec := executor.New(predictionStore, orderStore, credentialsStore, oddsClient, gatewayClient, constants, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := exec.Run(ctx, *raceID, cfg.Betting.TargetUserID)
	if err != nil {
		logger.Error("executor run failed", "race_id", *raceID, "err", err)
		os.Exit(1)
	}

	logger.Info("executor run finished", "race_id", *raceID, "status", result.Status, "bets_count", result.BetsCount, "reason", result.Reason)
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
