package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/aidiag/internal/model"
)

const (
	resultPrefix    = "aidiag:result:"
	narrativePrefix = "aidiag:narrative:"
)

// Redis is a Cache backed by a Redis server, shared between instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and pings it once. A failed ping is returned
// so the caller can fall back to a memory cache.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return newRedis(client, ttl), nil
}

func newRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) PutResult(ctx context.Context, r model.DiagnosisResult) {
	c.set(ctx, resultPrefix+r.DiagnosisID, r)
}

func (c *Redis) GetResult(ctx context.Context, id string) (model.DiagnosisResult, bool) {
	var r model.DiagnosisResult
	if !c.get(ctx, resultPrefix+id, &r) {
		return model.DiagnosisResult{}, false
	}
	return r, true
}

func (c *Redis) PutNarrative(ctx context.Context, id string, n *model.Narrative) {
	if n == nil {
		return
	}
	c.set(ctx, narrativePrefix+id, n)
}

func (c *Redis) GetNarrative(ctx context.Context, id string) (*model.Narrative, bool) {
	var n model.Narrative
	if !c.get(ctx, narrativePrefix+id, &n) {
		return nil, false
	}
	return &n, true
}

// Ping checks the Redis connection.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *Redis) get(ctx context.Context, key string, v any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.Warn("cache get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}
