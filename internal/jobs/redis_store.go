package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vodbridge/backend/internal/models"
)

const (
	// redisKeyPrefix namespaces job records in Redis.
	redisKeyPrefix = "vodbridge:jobs:"
	// redisIndexKey is the sorted set ordering job ids by creation time.
	redisIndexKey = "vodbridge:jobs:index"
)

// RedisStore is an optional Store backend for deployments that want job
// records to survive a restart. Same retention semantics as MemoryStore:
// oldest-first eviction past the cap, driven by a creation-time index.
type RedisStore struct {
	client *redis.Client
	cap    int
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed job store.
func NewRedisStore(client *redis.Client, retentionCap int, logger *zap.Logger) *RedisStore {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, cap: retentionCap, logger: logger}
}

func redisJobKey(id uuid.UUID) string {
	return redisKeyPrefix + id.String()
}

// Add stores a new job and trims the oldest entries past the cap.
func (s *RedisStore) Add(ctx context.Context, job *models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisJobKey(job.ID), raw, 0)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(job.CreatedAt.UnixNano()),
		Member: job.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return s.evict(ctx)
}

// Update replaces the stored state of a job. No-op if the record was evicted.
func (s *RedisStore) Update(ctx context.Context, job *models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	// XX: only overwrite a record that still exists.
	if err := s.client.SetXX(ctx, redisJobKey(job.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Get returns the stored job, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	raw, err := s.client.Get(ctx, redisJobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// evict removes the oldest jobs beyond the retention cap.
func (s *RedisStore) evict(ctx context.Context) error {
	n, err := s.client.ZCard(ctx, redisIndexKey).Result()
	if err != nil {
		return fmt.Errorf("index size: %w", err)
	}
	excess := n - int64(s.cap)
	if excess <= 0 {
		return nil
	}
	oldest, err := s.client.ZRange(ctx, redisIndexKey, 0, excess-1).Result()
	if err != nil {
		return fmt.Errorf("index range: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, member := range oldest {
		pipe.Del(ctx, redisKeyPrefix+member)
	}
	pipe.ZRemRangeByRank(ctx, redisIndexKey, 0, excess-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("evict jobs: %w", err)
	}
	s.logger.Debug("evicted jobs", zap.Int64("count", excess))
	return nil
}
