package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "dist:"

// RedisDistanceStore keeps pair distances in Redis so repeated optimization
// runs skip recomputation.
type RedisDistanceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDistanceStore(redisURL string) (*RedisDistanceStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisDistanceStore{rdb: redis.NewClient(opt), ttl: 24 * time.Hour}, nil
}

func (s *RedisDistanceStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *RedisDistanceStore) Put(ctx context.Context, key string, e Entry) error {
	data, _ := json.Marshal(e)
	return s.rdb.Set(ctx, keyPrefix+key, data, s.ttl).Err()
}

func (s *RedisDistanceStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisDistanceStore) Close() error {
	return s.rdb.Close()
}
