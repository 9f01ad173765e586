// Package main is the operator CLI for the auto-bet pipeline: dry-run
// pipeline inspection for one race, gateway balance lookup, and past-order
// queries. A separate entry point from the orchestrator and executor so an
// operator can poke the system without affecting the scheduled processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/foie0222/baken-autobet/internal/config"
	"github.com/foie0222/baken-autobet/internal/executor"
	"github.com/foie0222/baken-autobet/internal/gateway"
	"github.com/foie0222/baken-autobet/internal/kernel"
	"github.com/foie0222/baken-autobet/internal/oddsfeed"
	"github.com/foie0222/baken-autobet/internal/repository"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "dry-run":
		dryRunCmd(ctx, cfg, db, rdb, logger, os.Args[2:])
	case "balance":
		balanceCmd(ctx, cfg, db, os.Args[2:])
	case "orders":
		ordersCmd(ctx, db, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: opscli <dry-run|balance|orders> [flags]")
	fmt.Fprintln(os.Stderr, "  dry-run -race-id <id>")
	fmt.Fprintln(os.Stderr, "  balance -user-id <id>")
	fmt.Fprintln(os.Stderr, "  orders  -race-id <id> -user-id <id>")
}

func dryRunCmd(ctx context.Context, cfg *config.Config, db *sqlx.DB, rdb *redis.Client, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("dry-run", flag.ExitOnError)
	raceID := fs.String("race-id", "", "race_id to preview")
	fs.Parse(args)
	if *raceID == "" {
		fmt.Fprintln(os.Stderr, "dry-run: -race-id is required")
		os.Exit(1)
	}

	predictionStore := repository.NewPredictionStore(rdb)
	orderStore := repository.NewOrderStore(db)
	credentialsStore := repository.NewCredentialsStore(db)
	oddsClient := oddsfeed.NewClient(cfg.Betting.OddsAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)
	gatewayClient := gateway.NewClient(cfg.Betting.GatewayAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)

	constants, err := kernel.LoadConstants(cfg.Runtime.KernelConstantsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load kernel constants: %v\n", err)
		os.Exit(1)
	}

	exec := executor.New(predictionStore, orderStore, credentialsStore, oddsClient, gatewayClient, constants, logger)

	_, lines, err := exec.Preview(ctx, *raceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview failed: %v\n", err)
		os.Exit(1)
	}
	if len(lines) == 0 {
		fmt.Println("no bets would be generated for this race")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Venue", "Race#", "Bet Type", "Number", "Amount")
	for _, l := range lines {
		table.Append(
			string(l.VenueCode),
			fmt.Sprintf("%d", l.RaceNumber),
			string(l.BetType),
			l.Number,
			fmt.Sprintf("¥%d", l.Amount),
		)
	}
	table.Render()
}

func balanceCmd(ctx context.Context, cfg *config.Config, db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	userID := fs.String("user-id", "", "user whose gateway balance to fetch")
	fs.Parse(args)
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "balance: -user-id is required")
		os.Exit(1)
	}

	credentialsStore := repository.NewCredentialsStore(db)
	gatewayClient := gateway.NewClient(cfg.Betting.GatewayAPIURL, cfg.HTTP.RequestTimeout, cfg.HTTP.RateLimitRPS)

	creds, err := credentialsStore.GetByUserID(ctx, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load credentials: %v\n", err)
		os.Exit(1)
	}
	defer creds.Zero()

	bal, err := gatewayClient.Balance(ctx, creds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance query failed: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Dedicated", "Settlable", "Bettable", "Limit")
	table.Append(
		fmt.Sprintf("¥%d", bal.Dedicated),
		fmt.Sprintf("¥%d", bal.Settlable),
		fmt.Sprintf("¥%d", bal.Bettable),
		fmt.Sprintf("¥%d", bal.Limit),
	)
	table.Render()
}

func ordersCmd(ctx context.Context, db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	raceID := fs.String("race-id", "", "race_id to list orders for")
	userID := fs.String("user-id", "", "user_id to list orders for")
	fs.Parse(args)
	if *raceID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "orders: -race-id and -user-id are required")
		os.Exit(1)
	}

	orderStore := repository.NewOrderStore(db)
	orders, err := orderStore.GetByRaceAndUser(ctx, *raceID, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "order query failed: %v\n", err)
		os.Exit(1)
	}
	if len(orders) == 0 {
		fmt.Println("no orders found")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Order ID", "Status", "Total Amount", "Created At")
	for _, o := range orders {
		table.Append(
			o.OrderID.String(),
			string(o.Status),
			fmt.Sprintf("¥%d", o.TotalAmount),
			o.CreatedAt.Format(time.RFC3339),
		)
	}
	table.Render()
}
