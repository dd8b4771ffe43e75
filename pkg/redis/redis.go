// Package redis connects the store shared by rate limiter replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/scamshield/pkg/config"
	"github.com/richxcame/scamshield/pkg/resilience"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient dials Redis and retries the first ping until ctx expires.
// Limiter calls sit on the request path, so command timeouts are kept short;
// a slow Redis makes the limiter fail open instead of stalling scans.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  250 * time.Millisecond,
		WriteTimeout: 250 * time.Millisecond,
	})

	_, err := resilience.Retry(ctx, ConnectRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return nil, client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis at %s: %w", cfg.RedisAddr(), err)
	}
	return &Client{Client: client}, nil
}

// HealthCheck pings Redis with a short timeout.
func (c *Client) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Ping(ctx).Err()
}

// ConnectRetryConfig backs off between startup pings
func ConnectRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = 100 * time.Millisecond
	cfg.MaxBackoff = time.Second
	cfg.RetryableChecker = IsTransient
	return cfg
}

// server replies that clear up on their own (replica promotion, dataset load)
var transientReplies = []string{"LOADING", "READONLY", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN"}

// IsTransient reports whether err is worth retrying. Network failures are;
// server replies are not, except the handful that mean "not ready yet".
// redis.Nil and context errors never are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var reply redis.Error
	if !errors.As(err, &reply) {
		return true
	}
	prefix, _, _ := strings.Cut(reply.Error(), " ")
	for _, p := range transientReplies {
		if strings.EqualFold(prefix, p) {
			return true
		}
	}
	return false
}
