package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/redis/go-redis/v9"
)

const scheduleKeyFormat = "schedule:%s" // schedule:auto-bet-<race_id>

// scheduleRecord is the JSON shape stored for each fire-once schedule.
type scheduleRecord struct {
	Name     string    `json:"name"`
	RaceID   string    `json:"race_id"`
	FireAt   time.Time `json:"fire_at"`
	Fired    bool      `json:"fired"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduleStore tracks the orchestrator's fire-once auto-bet schedules in
// Redis, keyed by schedule name, so re-running the periodic tick never
// double-creates a schedule for the same race.
type ScheduleStore struct {
	client *redis.Client
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(client *redis.Client) *ScheduleStore {
	return &ScheduleStore{client: client}
}

// CreateIfAbsent atomically creates a schedule named "auto-bet-<raceID>"
// firing at fireAt, unless one already exists. Returns
// domain.ErrScheduleAlreadyExists when a schedule for this race was already
// registered — callers should treat this as a no-op, not a failure.
func (s *ScheduleStore) CreateIfAbsent(ctx context.Context, raceID string, fireAt time.Time) error {
	name := scheduleName(raceID)
	rec := scheduleRecord{
		Name:      name,
		RaceID:    raceID,
		FireAt:    fireAt,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("schedule_store.CreateIfAbsent marshal: %w", err)
	}

	// Retain the record well past its fire time so a late orchestrator
	// restart can still observe that it already ran.
	ttl := time.Until(fireAt) + 24*time.Hour
	ok, err := s.client.SetNX(ctx, fmt.Sprintf(scheduleKeyFormat, name), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("schedule_store.CreateIfAbsent: %w", err)
	}
	if !ok {
		return domain.ErrScheduleAlreadyExists
	}
	return nil
}

// MarkFired records that a schedule's one-shot fire has executed.
func (s *ScheduleStore) MarkFired(ctx context.Context, raceID string) error {
	name := scheduleName(raceID)
	key := fmt.Sprintf(scheduleKeyFormat, name)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("schedule_store.MarkFired get: %w", err)
	}
	var rec scheduleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("schedule_store.MarkFired unmarshal: %w", err)
	}
	rec.Fired = true
	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("schedule_store.MarkFired marshal: %w", err)
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, key, updated, ttl).Err(); err != nil {
		return fmt.Errorf("schedule_store.MarkFired set: %w", err)
	}
	return nil
}

// Exists reports whether a schedule has already been created for raceID.
func (s *ScheduleStore) Exists(ctx context.Context, raceID string) (bool, error) {
	name := scheduleName(raceID)
	n, err := s.client.Exists(ctx, fmt.Sprintf(scheduleKeyFormat, name)).Result()
	if err != nil {
		return false, fmt.Errorf("schedule_store.Exists: %w", err)
	}
	return n > 0, nil
}

func scheduleName(raceID string) string {
	return "auto-bet-" + raceID
}
