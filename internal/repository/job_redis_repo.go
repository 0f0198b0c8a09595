package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/tender_rag_server/internal/model"
)

// RedisJobStore 任务记录以 JSON 形式存放在 <prefix><job_id>
type RedisJobStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisJobStore ttl 为 0 时记录不过期
func NewRedisJobStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisJobStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisJobStore) Save(ctx context.Context, job *model.JobRecord) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := s.client.Set(ctx, s.key(job.ID), data, s.ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*model.JobRecord, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, unavailable(err)
	}

	var job model.JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisJobStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
