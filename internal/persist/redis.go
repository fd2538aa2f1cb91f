package persist

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"

	"mzansipos/terminal/internal/domain"
)

const redisStateKey = "mzansipos:state"

// Redis keeps the snapshot under a single key, for tills that share a store
// backroom Redis instance.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Load(ctx context.Context) (*domain.AppState, bool, error) {
	val, err := r.client.Get(ctx, redisStateKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var state domain.AppState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

func (r *Redis) Save(ctx context.Context, state domain.AppState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	// No TTL: the snapshot is durable state, not a cache entry.
	return r.client.Set(ctx, redisStateKey, payload, 0).Err()
}
