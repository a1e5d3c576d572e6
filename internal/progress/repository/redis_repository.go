package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"invoice-backend/internal/progress/domain"

	"github.com/redis/go-redis/v9"
)

type redisProgressRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisProgressRepository keeps snapshots in Redis so any API instance can
// answer a status poll. Keys expire after ttl.
func NewRedisProgressRepository(rdb *redis.Client, ttl time.Duration) ProgressRepository {
	return &redisProgressRepository{rdb: rdb, ttl: ttl}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("progress:job:%s", jobID)
}

func userKey(userID string) string {
	return fmt.Sprintf("progress:user:%s", userID)
}

func (r *redisProgressRepository) Save(ctx context.Context, p *domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, jobKey(p.JobID), data, r.ttl)
	if p.UserID != "" {
		pipe.Set(ctx, userKey(p.UserID), p.JobID, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisProgressRepository) Get(ctx context.Context, jobID string) (*domain.Progress, error) {
	data, err := r.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", jobID, err)
	}
	return &p, nil
}

func (r *redisProgressRepository) LatestForUser(ctx context.Context, userID string) (*domain.Progress, error) {
	jobID, err := r.rdb.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, jobID)
}

func (r *redisProgressRepository) Delete(ctx context.Context, jobID string) error {
	return r.rdb.Del(ctx, jobKey(jobID)).Err()
}

// Prune is a no-op: Redis expires keys on its own.
func (r *redisProgressRepository) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}
