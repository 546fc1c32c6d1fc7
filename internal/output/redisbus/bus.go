package redisbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"eventrelay/internal/publisher"
)

// BodyField is the stream entry field holding the message body.
const BodyField = "body"

// AttributePrefix prefixes stream entry fields holding message attributes.
const AttributePrefix = "attr."

// Config configures the Redis stream bus.
type Config struct {
	Addr     string
	Password string
	DB       int
	MaxLen   int64
}

// Bus appends messages to Redis streams named by the topic.
type Bus struct {
	client *redis.Client
	maxLen int64
}

// New creates a Redis stream bus and checks connectivity.
func New(cfg Config) (*Bus, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis bus: %w", err)
	}

	return &Bus{client: client, maxLen: cfg.MaxLen}, nil
}

// Send adds one stream entry and returns its id.
func (b *Bus) Send(ctx context.Context, msg publisher.Message) (string, error) {
	if msg.Topic == "" {
		return "", fmt.Errorf("redis stream name is empty")
	}
	id, err := b.client.XAdd(ctx, XAddArgs(msg, b.maxLen)).Result()
	if err != nil {
		return "", fmt.Errorf("redis xadd failed: %w", err)
	}
	return id, nil
}

// XAddArgs maps a message to a stream entry.
func XAddArgs(msg publisher.Message, maxLen int64) *redis.XAddArgs {
	values := make(map[string]interface{}, len(msg.Attributes)+1)
	values[BodyField] = string(msg.Body)
	for name, attr := range msg.Attributes {
		values[AttributePrefix+name] = attr.StringValue
	}

	args := &redis.XAddArgs{
		Stream: msg.Topic,
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return args
}

// Name returns the bus name.
func (b *Bus) Name() string { return "redis" }

// Close closes the Redis client.
func (b *Bus) Close() error {
	return b.client.Close()
}
