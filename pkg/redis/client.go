package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection.
type Client struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewClient connects to Redis with retry. Cached profiles expire after ttl.
func NewClient(addr string, ttl time.Duration) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(ctx).Err(); err == nil {
			cancel()
			log.Println("Connected to Redis")
			return &Client{rdb: rdb, ttl: ttl}, nil
		}
		cancel()
		log.Printf("Waiting for Redis... (%d/20)", i+1)
		time.Sleep(2 * time.Second)
	}
	rdb.Close()
	return nil, fmt.Errorf("redis: failed to connect after 20 attempts")
}

func profileKey(userID string) string { return "profile:" + userID }

// CacheProfile stores profile fields in a hash with TTL.
func (c *Client) CacheProfile(ctx context.Context, userID string, fields map[string]string) error {
	key := profileKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedProfile retrieves a cached profile hash. A miss yields an empty map.
func (c *Client) GetCachedProfile(ctx context.Context, userID string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, profileKey(userID)).Result()
}

// InvalidateProfile drops a cached profile.
func (c *Client) InvalidateProfile(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, profileKey(userID)).Err()
}

// Close tears down the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }
