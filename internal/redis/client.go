package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TxFailedErr is returned by Watch when a watched key changed.
var TxFailedErr = redis.TxFailedErr

type (
	Tx        = redis.Tx
	Pipeliner = redis.Pipeliner
	Z         = redis.Z
)

type Client struct {
	rdb     *redis.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewClient(addr, password string, db int, logger zerolog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", addr).Msg("Connected to Redis")

	return &Client{
		rdb:    rdb,
		logger: logger.With().Str("component", "redis").Logger(),
	}, nil
}

// WithMetrics records every operation outcome on m.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) observe(op string, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
	}
	c.metrics.IncRedisOperation(op, status)
}

func (c *Client) Ping(ctx context.Context) error {
	err := c.rdb.Ping(ctx).Err()
	c.observe("ping", err)
	return err
}

// SetNX sets key only when it is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, expiration).Result()
	c.observe("setnx", err)
	return ok, err
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	err := c.rdb.Del(ctx, keys...).Err()
	c.observe("del", err)
	return err
}

// Exists reports how many of keys are present.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	v, err := c.rdb.Exists(ctx, keys...).Result()
	c.observe("exists", err)
	return v, err
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := c.rdb.HGetAll(ctx, key).Result()
	c.observe("hgetall", err)
	return v, err
}

// HMGet returns one slot per field; absent fields are nil.
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) ([]interface{}, error) {
	v, err := c.rdb.HMGet(ctx, key, fields...).Result()
	c.observe("hmget", err)
	return v, err
}

func (c *Client) HKeys(ctx context.Context, key string) ([]string, error) {
	v, err := c.rdb.HKeys(ctx, key).Result()
	c.observe("hkeys", err)
	return v, err
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	err := c.rdb.HDel(ctx, key, fields...).Err()
	c.observe("hdel", err)
	return err
}

func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.ZCard(ctx, key).Result()
	c.observe("zcard", err)
	return v, err
}

// ZRevRange returns members ranked highest first, inclusive of both bounds.
func (c *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := c.rdb.ZRevRange(ctx, key, start, stop).Result()
	c.observe("zrevrange", err)
	return v, err
}

func (c *Client) ZRem(ctx context.Context, key string, members ...interface{}) error {
	err := c.rdb.ZRem(ctx, key, members...).Err()
	c.observe("zrem", err)
	return err
}

// TxPipelined queues fn's commands in MULTI/EXEC and sends them in one round trip.
func (c *Client) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	cmds, err := c.rdb.TxPipelined(ctx, fn)
	c.observe("multi", err)
	return cmds, err
}

// Watch runs fn in an optimistic transaction guarded by keys.
func (c *Client) Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	err := c.rdb.Watch(ctx, fn, keys...)
	c.observe("watch", err)
	return err
}

// ScanKeys walks the keyspace for pattern without blocking the server.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	err := iter.Err()
	c.observe("scan", err)
	return keys, err
}

func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	err := c.rdb.Publish(ctx, channel, message).Err()
	c.observe("publish", err)
	return err
}

func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}
