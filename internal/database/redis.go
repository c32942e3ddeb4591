package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lanchat/internal/models"
	"lanchat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of *redis.Client the store needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore keeps each map as a single JSON value under prefixed keys.
type RedisStore struct {
	client RedisClient
	prefix string
}

func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to redis at %s", addr)
	return NewRedisStoreWithClient(client, prefix), nil
}

func NewRedisStoreWithClient(client RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) roomsKey() string     { return s.prefix + ":rooms" }
func (s *RedisStore) nicknamesKey() string { return s.prefix + ":nicknames" }

func (s *RedisStore) LoadRooms(ctx context.Context) (map[string]*models.Room, error) {
	rooms := make(map[string]*models.Room)
	if err := s.get(ctx, s.roomsKey(), &rooms); err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = make(map[string]*models.Room)
	}
	return rooms, nil
}

func (s *RedisStore) SaveRooms(ctx context.Context, rooms map[string]*models.Room) error {
	return s.set(ctx, s.roomsKey(), rooms)
}

func (s *RedisStore) LoadNicknames(ctx context.Context) (map[string][]string, error) {
	nicknames := make(map[string][]string)
	if err := s.get(ctx, s.nicknamesKey(), &nicknames); err != nil {
		return nil, err
	}
	if nicknames == nil {
		nicknames = make(map[string][]string)
	}
	return nicknames, nil
}

func (s *RedisStore) SaveNicknames(ctx context.Context, nicknames map[string][]string) error {
	return s.set(ctx, s.nicknamesKey(), nicknames)
}

func (s *RedisStore) get(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
