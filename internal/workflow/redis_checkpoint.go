package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "researchteam:checkpoint:"
	defaultRedisTTL       = 24 * time.Hour
)

// RedisCheckpointer stores the latest checkpoint per thread as a JSON value
// with a sliding TTL.
type RedisCheckpointer struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisCheckpointer)

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCheckpointer) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithTTL sets the key expiry; zero keeps the default and a negative value
// disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisCheckpointer) {
		switch {
		case ttl < 0:
			r.ttl = 0
		case ttl > 0:
			r.ttl = ttl
		}
	}
}

func NewRedisCheckpointer(client redis.UniversalClient, opts ...RedisOption) *RedisCheckpointer {
	r := &RedisCheckpointer{
		client: client,
		prefix: defaultRedisKeyPrefix,
		ttl:    defaultRedisTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCheckpointer) key(threadID string) string {
	return r.prefix + threadID
}

func (r *RedisCheckpointer) Save(ctx context.Context, cp Checkpoint) error {
	if cp.ThreadID == "" {
		return errors.New("checkpoint thread id is required")
	}
	data, err := EncodeCheckpoint(cp)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(cp.ThreadID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key(cp.ThreadID), err)
	}
	return nil
}

func (r *RedisCheckpointer) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	data, err := r.client.Get(ctx, r.key(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, threadID)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("redis get %s: %w", r.key(threadID), err)
	}
	return DecodeCheckpoint(data)
}

// Ping checks connectivity.
func (r *RedisCheckpointer) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCheckpointer) Close() error {
	return r.client.Close()
}
