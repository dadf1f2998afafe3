package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

// RedisHistoryRepository keeps each thread's turns in one Redis list.
// The list is capped at maxTurns and expires after ttl without appends.
type RedisHistoryRepository struct {
	rdb      redis.Cmdable
	maxTurns int
	ttl      time.Duration
}

func NewRedisHistoryRepository(rdb redis.Cmdable, maxTurns int, ttl time.Duration) *RedisHistoryRepository {
	return &RedisHistoryRepository{rdb: rdb, maxTurns: maxTurns, ttl: ttl}
}

func (r *RedisHistoryRepository) historyKey(threadID string) string {
	return fmt.Sprintf("history:%s:turns", threadID)
}

func (r *RedisHistoryRepository) Append(ctx context.Context, entry model.HistoryEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", entry.ThreadID).Msg("failed to marshal history entry")
		return fmt.Errorf("marshal history entry: %w", err)
	}
	key := r.historyKey(entry.ThreadID)

	// push, trim and touch atomically so readers never see an over-long list
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		if r.maxTurns > 0 {
			pipe.LTrim(ctx, key, int64(-r.maxTurns), -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append history entry to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHistoryRepository) Entries(ctx context.Context, threadID string) ([]model.HistoryEntry, error) {
	key := r.historyKey(threadID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.HistoryEntry{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load history from redis")
		return nil, errx.WrapRedis(err)
	}

	entries := make([]model.HistoryEntry, 0, len(rows))
	for i, s := range rows {
		var e model.HistoryEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Int("index", i).Msg("failed to unmarshal history entry")
			return nil, fmt.Errorf("unmarshal history entry at index %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisHistoryRepository) Clear(ctx context.Context, threadID string) error {
	key := r.historyKey(threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHistoryRepository) Count(ctx context.Context, threadID string) (int, error) {
	key := r.historyKey(threadID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to count history entries in redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.HistoryRepository = (*RedisHistoryRepository)(nil)
