package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventrelay/internal/logger"
	"eventrelay/internal/metrics"
	"eventrelay/internal/transform/audit"
	"eventrelay/internal/transform/sanitize"
	"eventrelay/pkg/models"
)

var (
	// ErrDelivery wraps every failure reported in a Result.
	ErrDelivery = errors.New("delivery failed")
	// ErrNoTopic is reported when no topic was given.
	ErrNoTopic = errors.New("topic is empty")
	// ErrNoEventName is reported for events without a routing name.
	ErrNoEventName = errors.New("event name is empty")
)

// Result reports the outcome of a publish. Callers that treat publishing as
// fire-and-forget may ignore it.
type Result struct {
	MessageID string
	Err       error
}

// OK reports whether the message was accepted by the bus.
func (r Result) OK() bool {
	return r.Err == nil
}

// Publisher sends cleansed events to a Bus.
type Publisher struct {
	bus Bus
}

// New creates a publisher over the given bus.
func New(bus Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish strips empty fields from the event, tags it with its event name and
// sends it to topic. Failures are logged and returned in the Result only; the
// call always completes normally once the send attempt has resolved.
func (p *Publisher) Publish(ctx context.Context, event *models.CleansedEvent, topic string) (res Result) {
	logger.Infof("Topic: %s", topic)

	busName := p.bus.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%w: bus panic: %v", ErrDelivery, r)}
		}
		status := "success"
		if res.Err != nil {
			status = "failure"
			logger.Errorf("Failed to publish event to %s: %v", topic, res.Err)
		} else {
			logger.Infof("MessageID is %s", res.MessageID)
		}
		metrics.ObservePublish(busName, status, time.Since(start))
	}()

	msg, err := NewMessage(event, topic)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", ErrDelivery, err)}
	}
	if topic == "" {
		return Result{Err: fmt.Errorf("%w: %w", ErrDelivery, ErrNoTopic)}
	}

	id, err := p.bus.Send(ctx, msg)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %s: %w", ErrDelivery, busName, err)}
	}
	return Result{MessageID: id}
}

// PublishRaw decodes an upstream event, builds the cleansed event and publishes it.
// Events that fail to decode or build are not sent.
func (p *Publisher) PublishRaw(ctx context.Context, data []byte, topic string) Result {
	raw, err := audit.Parse(data)
	if err != nil {
		metrics.IncBuilt("unparsable")
		logger.Warnf("Failed to parse audit event: %v", err)
		return Result{Err: err}
	}
	event, err := audit.FromAuditEvent(raw)
	if err != nil {
		metrics.IncBuilt("invalid")
		logger.Warnf("Rejected audit event %q: %v", raw.EventID, err)
		return Result{Err: err}
	}
	metrics.IncBuilt("ok")
	return p.Publish(ctx, event, topic)
}

// Close closes the underlying bus.
func (p *Publisher) Close() error {
	return p.bus.Close()
}

// NewMessage builds the outbound message for an event: the sanitized JSON
// body plus the eventName routing attribute.
func NewMessage(event *models.CleansedEvent, topic string) (Message, error) {
	if event == nil || event.EventName() == "" {
		return Message{}, ErrNoEventName
	}
	body, err := sanitize.StripJSON(event)
	if err != nil {
		return Message{}, fmt.Errorf("serialize event %s: %w", event.EventID(), err)
	}
	return Message{
		Topic: topic,
		Body:  body,
		Attributes: map[string]Attribute{
			EventNameAttribute: {DataType: StringDataType, StringValue: event.EventName()},
		},
	}, nil
}
