package httpbus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventrelay/internal/publisher"
)

const (
	// TopicHeader carries the topic name.
	TopicHeader = "X-Event-Topic"
	// AttributeHeaderPrefix prefixes one header per message attribute.
	AttributeHeaderPrefix = "X-Event-Attr-"
	// MessageIDHeader is read from the response when the receiver assigns ids.
	MessageIDHeader = "X-Message-Id"
)

// Config configures the HTTP bus.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Bus posts messages to a remote HTTP endpoint.
type Bus struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates an HTTP bus.
func New(cfg Config) (*Bus, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http bus URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Bus{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Send posts the message body. Attributes travel as headers.
func (b *Bus) Send(ctx context.Context, msg publisher.Message) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(msg.Body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(TopicHeader, msg.Topic)
	for name, attr := range msg.Attributes {
		req.Header.Set(AttributeHeaderPrefix+name, attr.StringValue)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("http request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if id := resp.Header.Get(MessageIDHeader); id != "" {
		return id, nil
	}
	return uuid.NewString(), nil
}

// Name returns the bus name.
func (b *Bus) Name() string { return "http" }

// Close releases HTTP resources.
func (b *Bus) Close() error {
	b.client.CloseIdleConnections()
	return nil
}
