// Package redis owns the client used by the processed-event markers.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"keybridge/internal/platform/config"
)

// Client embeds the go-redis client so callers get the full command surface
// plus the readiness hook.
type Client struct {
	*redis.Client
}

// New dials redis from the configured URL and verifies the connection before
// handing it out. A nil client with a nil error means redis is not configured;
// the dedupe layer then falls back to its in-memory marker.
func New(cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports connection health for the readiness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
