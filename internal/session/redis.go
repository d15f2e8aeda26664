package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// redisIDsKey is the set of known session ids.
	redisIDsKey = "docchat:sessions"
	// redisTurnsPrefix prefixes the per-session list of JSON-encoded turns.
	redisTurnsPrefix = "docchat:session:"
)

// RedisBackend keeps history in Redis so several server replicas share it.
// Per-session ordering across replicas is not coordinated; the Store lock
// serialises turns within one process.
type RedisBackend struct {
	client   *redis.Client
	maxTurns int64
}

// RedisConfig holds connection settings for a RedisBackend.
type RedisConfig struct {
	// Addr is host:port (default localhost:6379).
	Addr string
	// Password is the optional AUTH password.
	Password string
	// DB selects the logical database.
	DB int
	// MaxTurns caps each session's stored list. Zero keeps every turn.
	MaxTurns int
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg *RedisConfig) (*RedisBackend, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis ping %s: %w", addr, err)
	}
	return &RedisBackend{client: client, maxTurns: int64(cfg.MaxTurns)}, nil
}

// Name implements the readiness probe contract.
func (r *RedisBackend) Name() string { return "redis" }

// Ping checks the Redis connection.
func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session: redis ping: %w", err)
	}
	return nil
}

// Ensure registers id.
func (r *RedisBackend) Ensure(ctx context.Context, id string) error {
	if err := r.client.SAdd(ctx, redisIDsKey, id).Err(); err != nil {
		return fmt.Errorf("session: redis ensure: %w", err)
	}
	return nil
}

// Append stores t as the newest turn of id, dropping turns beyond MaxTurns.
func (r *RedisBackend) Append(ctx context.Context, id string, t Turn) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("session: redis encode turn: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, redisIDsKey, id)
		pipe.RPush(ctx, redisTurnsPrefix+id, raw)
		if r.maxTurns > 0 {
			pipe.LTrim(ctx, redisTurnsPrefix+id, -r.maxTurns, -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: redis append: %w", err)
	}
	return nil
}

// Recent returns the k newest turns of id, oldest-first.
func (r *RedisBackend) Recent(ctx context.Context, id string, k int) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}
	raws, err := r.client.LRange(ctx, redisTurnsPrefix+id, int64(-k), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis recent: %w", err)
	}
	turns := make([]Turn, 0, len(raws))
	for _, raw := range raws {
		var t Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("session: redis decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// IDs returns every known session id.
func (r *RedisBackend) IDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, redisIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis ids: %w", err)
	}
	return ids, nil
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
