package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
	// DeadLetterKey receives audit events the relay rejected. Empty disables it.
	DeadLetterKey string
}

// Consumer pops raw audit events from a Redis list.
type Consumer struct {
	client        *redis.Client
	key           string
	deadLetterKey string
	blockTimeout  time.Duration
}

// Rejection is one dead-lettered audit event.
type Rejection struct {
	Payload    string    `json:"payload"`
	Reason     string    `json:"reason"`
	SourceKey  string    `json:"source_key"`
	RejectedAt time.Time `json:"rejected_at"`
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:        client,
		key:           cfg.Key,
		deadLetterKey: cfg.DeadLetterKey,
		blockTimeout:  cfg.BlockTimeout,
	}, nil
}

// Pop blocks for one raw event. A nil payload means the wait timed out.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Push appends raw events to the list. It is used to feed the queue from
// files and by replay tooling.
func (c *Consumer) Push(ctx context.Context, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	values := make([]interface{}, len(payloads))
	for i, p := range payloads {
		values[i] = string(p)
	}
	return c.client.RPush(ctx, c.key, values...).Err()
}

// DeadLetter records an audit event that could not be parsed or built so it
// can be inspected and replayed. It is a no-op without a dead-letter key.
func (c *Consumer) DeadLetter(ctx context.Context, payload []byte, reason error) error {
	if c.deadLetterKey == "" {
		return nil
	}
	record, err := encodeRejection(payload, reason, c.key, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.client.RPush(ctx, c.deadLetterKey, record).Err()
}

func encodeRejection(payload []byte, reason error, sourceKey string, at time.Time) (string, error) {
	r := Rejection{
		Payload:    string(payload),
		SourceKey:  sourceKey,
		RejectedAt: at,
	}
	if reason != nil {
		r.Reason = reason.Error()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode rejection: %w", err)
	}
	return string(data), nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
