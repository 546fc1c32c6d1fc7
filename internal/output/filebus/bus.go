package filebus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"eventrelay/internal/logger"
	"eventrelay/internal/publisher"
)

// Envelope is one line of the output file.
type Envelope struct {
	MessageID  string            `json:"message_id"`
	Topic      string            `json:"topic"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Body       json.RawMessage   `json:"body"`
}

// Bus appends messages to a JSON lines file.
type Bus struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// New creates a JSONL bus, appending to path.
func New(path string) (*Bus, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("File bus initialized: %s", path)
	return &Bus{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Send writes one envelope line.
func (b *Bus) Send(ctx context.Context, msg publisher.Message) (string, error) {
	env := Envelope{
		MessageID: uuid.NewString(),
		Topic:     msg.Topic,
		Body:      json.RawMessage(msg.Body),
	}
	if len(msg.Attributes) > 0 {
		env.Attributes = make(map[string]string, len(msg.Attributes))
		for name, attr := range msg.Attributes {
			env.Attributes[name] = attr.StringValue
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.file == nil {
		return "", fmt.Errorf("file bus is closed")
	}
	if err := b.encoder.Encode(env); err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return env.MessageID, nil
}

// Name returns the bus name.
func (b *Bus) Name() string { return "file" }

// Close closes the output file.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.file != nil {
		err := b.file.Close()
		b.file = nil
		return err
	}
	return nil
}
