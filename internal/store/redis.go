package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/entari/mjbridge/internal/task"
)

const redisKeyPrefix = "mj-task::"

// RedisStore persists records as JSON values under "mj-task::<id>" with the
// configured TTL; Redis handles expiry itself.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Save(ctx context.Context, rec task.Record) error {
	raw, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", rec.ID, err)
	}
	return s.rdb.Set(ctx, redisKey(rec.ID), raw, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (task.Record, error) {
	raw, err := s.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return task.Record{}, ErrNotFound
	}
	if err != nil {
		return task.Record{}, err
	}
	var rec task.Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return task.Record{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, redisKey(id)).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]task.Record, error) {
	var out []task.Record
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec task.Record
		if err := sonic.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) ListBy(ctx context.Context, cond task.Condition) ([]task.Record, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(recs, cond), nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
