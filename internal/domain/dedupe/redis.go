package dedupe

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "rota:dedupe:"
	defaultRedisTTL    = 24 * time.Hour
)

// RedisDeduper shares the seen set across instances with SET NX and a TTL.
type RedisDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	size   atomic.Int64
}

// RedisOption configures a RedisDeduper.
type RedisOption func(*RedisDeduper)

// WithKeyPrefix namespaces the keys written to Redis.
func WithKeyPrefix(prefix string) RedisOption {
	return func(d *RedisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithKeyTTL sets how long an ID is remembered.
func WithKeyTTL(ttl time.Duration) RedisOption {
	return func(d *RedisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// NewRedisDeduper creates a deduper backed by client.
func NewRedisDeduper(client redis.UniversalClient, opts ...RedisOption) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		prefix: defaultRedisPrefix,
		ttl:    defaultRedisTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RedisDeduper) key(id string) string {
	return d.prefix + id
}

// SeenAndRecord implements Deduper.
func (d *RedisDeduper) SeenAndRecord(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(id), time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", id, err)
	}
	if !ok {
		return true, nil
	}
	d.size.Add(1)
	return false, nil
}

// Unrecord implements Deduper.
func (d *RedisDeduper) Unrecord(ctx context.Context, id string) error {
	n, err := d.client.Del(ctx, d.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", id, err)
	}
	if n > 0 {
		d.size.Add(-1)
	}
	return nil
}

// Size reports IDs recorded through this instance and not unrecorded. Keys
// expiring in Redis are not subtracted.
func (d *RedisDeduper) Size() int64 {
	return d.size.Load()
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
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
