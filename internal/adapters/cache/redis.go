package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/matchcast/internal/domain/types"
	"github.com/redis/go-redis/v9"
)

// Redis stores reports as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &Redis{client: client, ttl: s.ttl}
}

// Dial connects to addr and checks the connection with PING.
func Dial(ctx context.Context, addr string, opts ...Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedis(client, opts...), nil
}

// Get returns the cached report or ErrMiss.
func (r *Redis) Get(ctx context.Context, modelID, team string) (types.Report, error) {
	b, err := r.client.Get(ctx, Key(modelID, team)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Report{}, ErrMiss
	}
	if err != nil {
		return types.Report{}, err
	}
	var report types.Report
	if err := json.Unmarshal(b, &report); err != nil {
		return types.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}

// Set stores report under the team key.
func (r *Redis) Set(ctx context.Context, modelID, team string, report types.Report) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.client.Set(ctx, Key(modelID, team), b, r.ttl).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
