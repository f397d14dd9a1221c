package location

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "safetap:location:"

// KVClient é o subconjunto do cliente Redis usado pelo backend.
type KVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisBackend guarda a última posição serializada em JSON.
type RedisBackend struct {
	client KVClient
	ttl    time.Duration
}

// NewRedisBackend cria backend; ttl zero mantém a chave sem expiração.
func NewRedisBackend(client KVClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (r *RedisBackend) Load(ctx context.Context, owner string) (Snapshot, error) {
	raw, err := r.client.Get(ctx, keyPrefix+owner).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (r *RedisBackend) Store(ctx context.Context, owner string, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+owner, payload, r.ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, owner string) error {
	return r.client.Del(ctx, keyPrefix+owner).Err()
}
