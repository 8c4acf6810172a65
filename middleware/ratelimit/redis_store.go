package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
)

const redisOpTimeout = 2 * time.Second

// RedisStore shares counters between instances. Redis errors fail open: the
// request is counted as zero and the error is logged.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logging.Service
}

func NewRedisStore(client *redis.Client, prefix string, logger *logging.Service) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// NewRedisClient parses url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(key string) (int, time.Time, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.key(key))
	ttlCmd := pipe.PTTL(ctx, s.key(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Error("rate limit store read failed", zap.String("key", key), zap.Error(err))
		return 0, time.Time{}, false
	}

	raw, err := getCmd.Result()
	if err != nil {
		return 0, time.Time{}, false
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, time.Time{}, false
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, time.Time{}, false
	}

	return count, time.Now().Add(ttl), true
}

func (s *RedisStore) Set(key string, count int, resetTime time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ttl := time.Until(resetTime)
	if ttl <= 0 {
		s.Reset(key)
		return
	}

	if err := s.client.Set(ctx, s.key(key), count, ttl).Err(); err != nil {
		s.logger.Error("rate limit store write failed", zap.String("key", key), zap.Error(err))
	}
}

// incrementScript bumps the counter and attaches the window TTL in one step.
// A key left without a TTL is repaired on its next increment.
var incrementScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (s *RedisStore) Increment(key string, resetTime time.Time) int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ttl := time.Until(resetTime)
	if ttl <= 0 {
		ttl = time.Second
	}

	count, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, ttl.Milliseconds()).Int()
	if err != nil {
		s.logger.Error("rate limit store increment failed", zap.String("key", key), zap.Error(err))
		return 0
	}

	return count
}

func (s *RedisStore) Reset(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Error("rate limit store reset failed", zap.String("key", key), zap.Error(err))
	}
}
