package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

const defaultRedisTTL = 30 * 24 * time.Hour

// RedisSink appends each record to a Redis list via RPUSH, for deployments
// that want a durable, centrally-queryable audit log without standing up a
// dedicated log pipeline. It is the optional sink named in spec §4.8;
// FileSink remains the default.
type RedisSink struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisSinkOption configures a RedisSink.
type RedisSinkOption func(*RedisSink)

// WithRedisTTL sets the expiration applied to the audit list after each
// append. Zero disables expiration.
func WithRedisTTL(ttl time.Duration) RedisSinkOption {
	return func(s *RedisSink) { s.ttl = ttl }
}

// NewRedisSink builds a RedisSink that appends to key on client.
func NewRedisSink(client *redis.Client, key string, opts ...RedisSinkOption) *RedisSink {
	s := &RedisSink{client: client, key: key, ttl: defaultRedisTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append RPUSHes rec's JSON encoding onto the configured list key and
// refreshes the list's TTL in the same round-trip.
func (s *RedisSink) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return ctxerr.New("audit", "RedisSink.Append", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return ctxerr.New("audit", "RedisSink.Append", fmt.Errorf("redis pipeline failed: %w", err))
	}
	return nil
}

var _ Sink = (*RedisSink)(nil)
