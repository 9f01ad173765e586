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

const predictionKeyFormat = "prediction:%s:%s" // prediction:<race_id>:<source>

// PredictionStore caches per-source Predictions in Redis with a native TTL,
// matching the 7-day staleness window in domain.PredictionTTL.
type PredictionStore struct {
	client *redis.Client
}

// NewPredictionStore creates a new PredictionStore.
func NewPredictionStore(client *redis.Client) *PredictionStore {
	return &PredictionStore{client: client}
}

// Put stores a Prediction, deriving the Redis key expiry from p.TTL (the
// absolute expiry instant) or, if unset, domain.PredictionTTL after
// p.ScrapedAt.
func (s *PredictionStore) Put(ctx context.Context, p domain.Prediction) error {
	expiresAt := p.TTL
	if expiresAt.IsZero() {
		expiresAt = p.ScrapedAt.Add(domain.PredictionTTL)
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("prediction_store.Put: %w", domain.ErrPredictionExpired)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prediction_store.Put marshal: %w", err)
	}
	key := fmt.Sprintf(predictionKeyFormat, p.RaceID, p.Source)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("prediction_store.Put: %w", err)
	}
	return nil
}

// Get fetches one source's Prediction for a race. Returns
// domain.ErrPredictionNotFound if the key has expired or was never set.
func (s *PredictionStore) Get(ctx context.Context, raceID string, source domain.SourceName) (domain.Prediction, error) {
	key := fmt.Sprintf(predictionKeyFormat, raceID, source)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Prediction{}, domain.ErrPredictionNotFound
		}
		return domain.Prediction{}, fmt.Errorf("prediction_store.Get: %w", err)
	}
	var p domain.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_store.Get unmarshal: %w", err)
	}
	return p, nil
}

// GetAll fetches every available source's Prediction for a race. Sources
// that are missing or expired are silently skipped — callers enforce the
// minimum-source-count requirement themselves.
func (s *PredictionStore) GetAll(ctx context.Context, raceID string) (map[domain.SourceName]domain.Prediction, error) {
	out := make(map[domain.SourceName]domain.Prediction, len(domain.AllSources))
	for _, src := range domain.AllSources {
		p, err := s.Get(ctx, raceID, src)
		if err != nil {
			if errors.Is(err, domain.ErrPredictionNotFound) {
				continue
			}
			return nil, err
		}
		out[src] = p
	}
	return out, nil
}
