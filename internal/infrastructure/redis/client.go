package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNil is returned by Get for a missing key.
var ErrNil = redis.Nil

// ErrConflict is returned by Update when a watched key kept changing.
var ErrConflict = errors.New("redis: watched key changed concurrently")

// Client wraps the Redis client with the operations the stores need.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient parses url, connects and pings.
func NewClient(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return Wrap(ctx, redis.NewClient(opts), logger)
}

// Wrap adopts an existing go-redis client after checking connectivity.
func Wrap(ctx context.Context, rdb *redis.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// Set stores a value with optional TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX stores value only if key is absent and reports whether it was stored.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Get retrieves a value. A missing key yields ErrNil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Scan returns all keys matching pattern without blocking the server the way KEYS does.
func (c *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// MGet fetches several keys at once. Missing keys come back as empty strings
// with ok false.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]string, []bool, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	raw, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, err
	}
	vals := make([]string, len(raw))
	oks := make([]bool, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			vals[i], oks[i] = s, true
		}
	}
	return vals, oks, nil
}

// Update runs a WATCH/MULTI read-modify-write on key. fn receives the current
// value (ErrNil when absent) and returns the replacement. The transaction is
// retried when another client writes key in between, up to maxRetries times.
func (c *Client) Update(ctx context.Context, key string, maxRetries int, fn func(current string, err error) (string, error)) error {
	txf := func(tx *redis.Tx) error {
		current, getErr := tx.Get(ctx, key).Result()
		if getErr != nil && !errors.Is(getErr, redis.Nil) {
			return getErr
		}
		next, err := fn(current, getErr)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		c.logger.Debug("redis optimistic update conflict, retrying",
			slog.String("key", key),
			slog.Int("attempt", attempt+1),
		)
	}
	return ErrConflict
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
