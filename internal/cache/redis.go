// Package cache holds Redis-backed state that outlives a bot restart.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMarkerKey is the hash holding one field per connected user.
const DefaultMarkerKey = "voice:join_markers"

// Connect opens a Redis client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// RedisMarkerStore keeps join markers in a Redis hash so that sessions in
// progress survive a restart of the bot.
type RedisMarkerStore struct {
	client *redis.Client
	key    string
}

// NewRedisMarkerStore stores markers under key, or DefaultMarkerKey if empty.
func NewRedisMarkerStore(client *redis.Client, key string) *RedisMarkerStore {
	if key == "" {
		key = DefaultMarkerKey
	}
	return &RedisMarkerStore{client: client, key: key}
}

func (s *RedisMarkerStore) Get(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.client.HGet(ctx, s.key, userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read join marker: %w", err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt join marker %q for %s: %w", raw, userID, err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

func (s *RedisMarkerStore) Set(ctx context.Context, userID string, at time.Time) error {
	if err := s.client.HSet(ctx, s.key, userID, strconv.FormatInt(at.UnixNano(), 10)).Err(); err != nil {
		return fmt.Errorf("failed to write join marker: %w", err)
	}
	return nil
}

func (s *RedisMarkerStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.HDel(ctx, s.key, userID).Err(); err != nil {
		return fmt.Errorf("failed to delete join marker: %w", err)
	}
	return nil
}
