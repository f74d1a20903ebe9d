// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// ParseRedisURL converts a redis:// URL into asynq connection options.
func ParseRedisURL(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, oops.Code("MAIL_REDIS_URL_INVALID").Wrap(err)
	}
	return opt, nil
}

// RedisProbe reports whether the queue's Redis answers.
type RedisProbe struct {
	client *redis.Client
}

// NewRedisProbe connects lazily to redisURL.
func NewRedisProbe(redisURL string) (*RedisProbe, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.Code("MAIL_REDIS_URL_INVALID").Wrap(err)
	}
	return &RedisProbe{client: redis.NewClient(opt)}, nil
}

// Check pings Redis.
func (p *RedisProbe) Check(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return oops.Code("MAIL_REDIS_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close releases the connection pool.
func (p *RedisProbe) Close() error {
	return p.client.Close()
}
