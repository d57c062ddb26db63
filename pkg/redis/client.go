package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/debaseonomics/debasex/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChannelPrefix namespaces every dashboard channel and stream.
	ChannelPrefix = "debase"

	// TopicNotification carries rebase outcome notifications.
	TopicNotification = "notification"
	// TopicSnapshot carries refresh-cycle snapshot updates.
	TopicSnapshot = "snapshot"

	// DefaultNotificationHistory caps the notification log stream.
	DefaultNotificationHistory = 50
)

// Channel returns the pub/sub channel for topic, e.g. "debase:notification".
func Channel(topic string) string {
	return ChannelPrefix + ":" + topic
}

// Pattern matches every dashboard channel.
func Pattern() string {
	return ChannelPrefix + ":*"
}

// TopicFromChannel extracts the topic from a channel name; "" when the channel is foreign.
func TopicFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 2 || parts[0] != ChannelPrefix || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// Client wraps the Redis client for notification fan-out (Pub/Sub) and the notification log (Streams).
type Client struct {
	client     *redis.Client
	logger     *zap.Logger
	historyLen int64
}

// NewClient creates a new Redis client using environment variables for configuration.
// Environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
//   - NOTIFICATION_HISTORY: Max entries kept in the notification log (default: 50)
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)
	historyLen := utils.EnvInt64("NOTIFICATION_HISTORY", DefaultNotificationHistory)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		// Connection pool
		PoolSize:     10,
		MinIdleConns: 2,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db),
		zap.Int64("historyLen", historyLen))

	return &Client{
		client:     rdb,
		logger:     logger,
		historyLen: historyLen,
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Publish publishes a message to a Redis Pub/Sub channel.
// Best-effort: errors are logged, never returned, so a Redis outage cannot fail a rebase.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// PSubscribe subscribes to one or more Redis Pub/Sub channel patterns, e.g. Pattern().
// The caller is responsible for closing the PubSub object when done.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	c.logger.Debug("Subscribing to Redis patterns", zap.Strings("patterns", patterns))
	return c.client.PSubscribe(ctx, patterns...)
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// =============================================================================
// Notification log (Redis Streams)
// =============================================================================

// LogStream is the stream holding recent notifications.
func LogStream() string {
	return Channel(TopicNotification) + ":log"
}

// Append adds a payload to the notification log, trimmed approximately to the configured history.
// Best-effort like Publish; returns the entry ID or "".
func (c *Client) Append(ctx context.Context, payload string) string {
	args := &redis.XAddArgs{
		Stream: LogStream(),
		Values: map[string]interface{}{"payload": payload},
	}
	if c.historyLen > 0 {
		args.MaxLen = c.historyLen
		args.Approx = true
	}

	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		c.logger.Warn("Failed to append to notification log",
			zap.String("stream", args.Stream),
			zap.Error(err))
		return ""
	}
	return id
}

// Recent returns the retained notification payloads, oldest first.
func (c *Client) Recent(ctx context.Context) ([]string, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if c.historyLen > 0 {
		msgs, err = c.client.XRevRangeN(ctx, LogStream(), "+", "-", c.historyLen).Result()
	} else {
		msgs, err = c.client.XRevRange(ctx, LogStream(), "+", "-").Result()
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if payload, ok := msgs[i].Values["payload"].(string); ok {
			out = append(out, payload)
		}
	}
	return out, nil
}
