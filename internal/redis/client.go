package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

const pingTimeout = 5 * time.Second

// NewClient connects to redisURL and fails unless the server answers a
// ping within pingTimeout.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := &Client{redis.NewClient(opts)}
	if err := c.HealthCheck(ctx); err != nil {
		c.Client.Close()
		return nil, err
	}
	return c, nil
}

// HealthCheck pings the server under its own deadline.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// RideEventChannel is the pub/sub channel carrying ride decisions for a contact.
func RideEventChannel(phone string) string {
	return fmt.Sprintf("rides:%s", phone)
}

func ContactLockKey(phone string) string {
	return fmt.Sprintf("lock:conversation:%s", phone)
}

func PartyLockKey(phone string) string {
	return fmt.Sprintf("lock:party:%s", phone)
}
