// Package scheduler runs the long-lived auto-bet orchestrator: a periodic
// tick that looks ahead at the race calendar and idempotently registers a
// fire-once schedule for each upcoming race, 5 minutes before its post time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/foie0222/baken-autobet/internal/racecalendar"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RaceCalendar lists races due to post within a lookahead window.
type RaceCalendar interface {
	UpcomingWithin(ctx context.Context, window time.Duration) ([]racecalendar.UpcomingRace, error)
}

// ScheduleRegistry idempotently registers fire-once auto-bet schedules.
type ScheduleRegistry interface {
	CreateIfAbsent(ctx context.Context, raceID string, fireAt time.Time) error
}

// ExecutorRunner runs the bet-generation pipeline for one race. In
// cmd/orchestrator this is satisfied by an in-process runner that waits in
// its own goroutine until fireAt and then calls the executor; in this
// package it is modeled as an interface so the orchestrator does not depend
// on the executor package.
type ExecutorRunner interface {
	RunAsync(ctx context.Context, raceID string, fireAt time.Time) error
}

// Orchestrator runs the periodic tick that keeps every upcoming race's
// auto-bet schedule registered.
type Orchestrator struct {
	calendar      RaceCalendar
	schedules     ScheduleRegistry
	runner        ExecutorRunner
	tickInterval  time.Duration
	lookahead     time.Duration
	fireLead      time.Duration
	logger        *slog.Logger
	dedup         singleflight.Group
	stopChan      chan struct{}

	healthMu    sync.RWMutex
	lastTickAt  time.Time
	lastTickErr error
}

// Config holds the orchestrator's tunable windows.
type Config struct {
	TickInterval time.Duration // how often Tick runs; cmd/orchestrator uses half the lookahead
	Lookahead    time.Duration // how far ahead to scan the race calendar
	FireLead     time.Duration // how long before post_time the executor fires
}

// New builds an Orchestrator.
func New(calendar RaceCalendar, schedules ScheduleRegistry, runner ExecutorRunner, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		calendar:     calendar,
		schedules:    schedules,
		runner:       runner,
		tickInterval: cfg.TickInterval,
		lookahead:    cfg.Lookahead,
		fireLead:     cfg.FireLead,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the periodic tick loop. It returns immediately; the loop
// runs until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.tickLoop(ctx)
	o.logger.Info("orchestrator started", "tick_interval", o.tickInterval, "lookahead", o.lookahead)
}

// Stop signals the tick loop to exit.
func (o *Orchestrator) Stop() {
	close(o.stopChan)
}

func (o *Orchestrator) tickLoop(ctx context.Context) {
	defer o.recoverAndLog("tickLoop")

	if err := o.Tick(ctx); err != nil {
		o.logger.Error("initial tick failed", "err", err)
	}

	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := o.Tick(ctx); err != nil {
				o.logger.Error("tick failed", "err", err)
			}
		case <-o.stopChan:
			o.logger.Info("tickLoop: stopping")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick scans the race calendar for races starting within the lookahead
// window and ensures each one has a registered auto-bet schedule. Schedule
// creation for distinct races runs concurrently, one goroutine per race with
// no concurrency limit, joined by an errgroup that cancels the rest on the
// first error; a singleflight guard additionally collapses two ticks racing inside this
// same process onto one schedule-ensure call per race.
func (o *Orchestrator) Tick(ctx context.Context) error {
	err := o.tick(ctx)

	o.healthMu.Lock()
	o.lastTickAt = time.Now()
	o.lastTickErr = err
	o.healthMu.Unlock()

	return err
}

func (o *Orchestrator) tick(ctx context.Context) error {
	races, err := o.calendar.UpcomingWithin(ctx, o.lookahead)
	if err != nil {
		return err
	}
	if len(races) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, race := range races {
		race := race
		g.Go(func() error {
			_, err, _ := o.dedup.Do(race.RaceID, func() (any, error) {
				return nil, o.ensureSchedule(gctx, race)
			})
			return err
		})
	}
	return g.Wait()
}

// Ready reports whether the most recent tick succeeded within twice the
// tick interval. Used by httpapi's /readyz probe.
func (o *Orchestrator) Ready() error {
	o.healthMu.RLock()
	defer o.healthMu.RUnlock()

	if o.lastTickAt.IsZero() {
		return fmt.Errorf("no tick has completed yet")
	}
	if o.lastTickErr != nil {
		return fmt.Errorf("last tick failed: %w", o.lastTickErr)
	}
	if stale := 2 * o.tickInterval; time.Since(o.lastTickAt) > stale {
		return fmt.Errorf("last tick was %s ago, older than %s", time.Since(o.lastTickAt), stale)
	}
	return nil
}

func (o *Orchestrator) ensureSchedule(ctx context.Context, race racecalendar.UpcomingRace) error {
	fireAt := race.PostTime.Add(-o.fireLead)

	err := o.schedules.CreateIfAbsent(ctx, race.RaceID, fireAt)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleAlreadyExists) {
			return nil
		}
		return err
	}

	o.logger.Info("schedule registered", "race_id", race.RaceID, "fire_at", fireAt)
	return o.runner.RunAsync(ctx, race.RaceID, fireAt)
}

// recoverAndLog is deferred inside the tick goroutine to catch unexpected
// panics, log them, and avoid taking down the whole orchestrator process.
func (o *Orchestrator) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		o.logger.Error("PANIC recovered in orchestrator loop", "loop", loop, "panic", r)
	}
}
