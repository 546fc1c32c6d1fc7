package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"eventrelay/internal/logger"
	"eventrelay/internal/transform/audit"
	"eventrelay/pkg/models"
)

type fakeBus struct {
	mu   sync.Mutex
	sent []Message
	err  error
	id   string
	bang bool
}

func (b *fakeBus) Send(ctx context.Context, msg Message) (string, error) {
	if b.bang {
		panic("broker exploded")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	if b.err != nil {
		return "", b.err
	}
	return b.id, nil
}

func (b *fakeBus) Name() string { return "fake" }
func (b *fakeBus) Close() error { return nil }

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf, logger.Debug)
	t.Cleanup(func() { logger.SetOutput(&bytes.Buffer{}, logger.Info) })
	return &buf
}

func mustBuild(t *testing.T, name string, extensions map[string]interface{}) *models.CleansedEvent {
	t.Helper()
	event, err := audit.Build("e1", name, "c1", 100, "2024-01-01T00:00:00Z", extensions)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return event
}

func TestPublishTagsEventName(t *testing.T) {
	captureLogs(t)
	bus := &fakeBus{id: "msg-1"}
	p := New(bus)

	res := p.Publish(context.Background(), mustBuild(t, "LoginAttempt", nil), "arn:aws:sns:eu-west-1:123:audit")
	if !res.OK() || res.MessageID != "msg-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(bus.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(bus.sent))
	}
	attr, ok := bus.sent[0].Attributes[EventNameAttribute]
	if !ok {
		t.Fatalf("missing eventName attribute")
	}
	if attr.DataType != "String" || attr.StringValue != "LoginAttempt" {
		t.Fatalf("unexpected attribute: %+v", attr)
	}
	if len(bus.sent[0].Attributes) != 1 {
		t.Fatalf("expected exactly one attribute, got %v", bus.sent[0].Attributes)
	}
	if bus.sent[0].Topic != "arn:aws:sns:eu-west-1:123:audit" {
		t.Fatalf("unexpected topic: %s", bus.sent[0].Topic)
	}
}

func TestPublishBodyHasNoNulls(t *testing.T) {
	captureLogs(t)
	bus := &fakeBus{id: "msg-2"}
	p := New(bus)

	event := mustBuild(t, "Test", map[string]interface{}{
		"evidence": map[string]interface{}{"validityScore": 1, "junk": nil},
	})
	p.Publish(context.Background(), event, "topic")

	body := bus.sent[0].Body
	if strings.Contains(string(body), "null") {
		t.Fatalf("body contains null: %s", body)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded["event_id"] != "e1" || decoded["event_name"] != "Test" || decoded["timestamp"] != float64(100) {
		t.Fatalf("unexpected body: %s", body)
	}
	evidence := decoded["extensions"].(map[string]interface{})["evidence"].(map[string]interface{})
	if len(evidence) != 1 || evidence["validityScore"] != float64(1) {
		t.Fatalf("unexpected evidence: %#v", evidence)
	}
}

func TestPublishContainsBusFailure(t *testing.T) {
	logs := captureLogs(t)
	bus := &fakeBus{err: errors.New("AuthorizationError")}
	p := New(bus)

	res := p.Publish(context.Background(), mustBuild(t, "Test", nil), "topic")
	if res.OK() {
		t.Fatalf("expected failure result")
	}
	if !errors.Is(res.Err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", res.Err)
	}
	if !strings.Contains(logs.String(), "[ERROR]") || !strings.Contains(logs.String(), "AuthorizationError") {
		t.Fatalf("expected failure record in logs, got %q", logs.String())
	}
}

func TestPublishContainsBusPanic(t *testing.T) {
	logs := captureLogs(t)
	p := New(&fakeBus{bang: true})

	res := p.Publish(context.Background(), mustBuild(t, "Test", nil), "topic")
	if !errors.Is(res.Err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", res.Err)
	}
	if !strings.Contains(logs.String(), "broker exploded") {
		t.Fatalf("expected panic to be logged, got %q", logs.String())
	}
}

func TestPublishWithoutTopic(t *testing.T) {
	logs := captureLogs(t)
	bus := &fakeBus{id: "unused"}
	p := New(bus)

	res := p.Publish(context.Background(), mustBuild(t, "Test", nil), "")
	if !errors.Is(res.Err, ErrNoTopic) || !errors.Is(res.Err, ErrDelivery) {
		t.Fatalf("expected ErrNoTopic, got %v", res.Err)
	}
	if len(bus.sent) != 0 {
		t.Fatalf("expected no send without topic")
	}
	if !strings.Contains(logs.String(), "[ERROR]") {
		t.Fatalf("expected failure record, got %q", logs.String())
	}
}

func TestPublishNilEvent(t *testing.T) {
	captureLogs(t)
	res := New(&fakeBus{}).Publish(context.Background(), nil, "topic")
	if !errors.Is(res.Err, ErrNoEventName) {
		t.Fatalf("expected ErrNoEventName, got %v", res.Err)
	}
}

func TestPublishRaw(t *testing.T) {
	captureLogs(t)
	bus := &fakeBus{id: "raw-1"}
	p := New(bus)

	res := p.PublishRaw(context.Background(), []byte(`{"event_id":"e1","event_name":"Test","component_id":"c1",`+
		`"timestamp":100,"timestamp_formatted":"2024-01-01T00:00:00Z","extensions":{"evidence":{"validityScore":1,"junk":null}}}`), "topic")
	if !res.OK() || res.MessageID != "raw-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := string(bus.sent[0].Body); strings.Contains(got, "junk") || strings.Contains(got, "null") {
		t.Fatalf("unexpected body: %s", got)
	}

	res = p.PublishRaw(context.Background(), []byte(`{"event_id":"e2"}`), "topic")
	if !errors.Is(res.Err, audit.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", res.Err)
	}
	if len(bus.sent) != 1 {
		t.Fatalf("invalid event should not be sent")
	}
}

func TestConcurrentPublishesAreIndependent(t *testing.T) {
	captureLogs(t)
	bus := &fakeBus{id: "x"}
	p := New(bus)
	event := mustBuild(t, "Parallel", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Publish(context.Background(), event, "topic")
		}()
	}
	wg.Wait()
	if len(bus.sent) != 20 {
		t.Fatalf("expected 20 sends, got %d", len(bus.sent))
	}
}
