// Package redis stores encoded vectors in Redis through go-redis/v9. Keys
// are the configured prefix followed by the decimal docId.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
)

type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient connects and verifies the connection with a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix, ttl: cfg.VectorTTL}, nil
}

func (c *Client) Key(docID int32) string {
	return c.prefix + strconv.FormatInt(int64(docID), 10)
}

// PutVector stores payload under the key of docID with the configured TTL.
// A zero TTL keeps the key forever.
func (c *Client) PutVector(ctx context.Context, docID int32, payload []byte) error {
	if err := c.rdb.Set(ctx, c.Key(docID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing vector %d: %w", docID, err)
	}
	return nil
}

// GetVector returns the stored payload, or nil with no error when the key
// does not exist.
func (c *Client) GetVector(ctx context.Context, docID int32) ([]byte, error) {
	b, err := c.rdb.Get(ctx, c.Key(docID)).Bytes()
	if IsNilError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading vector %d: %w", docID, err)
	}
	return b, nil
}

// FlushVectors deletes every key under the prefix and returns the count.
func (c *Client) FlushVectors(ctx context.Context) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning prefix %s: %w", c.prefix, err)
	}
	return deleted, nil
}

func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
