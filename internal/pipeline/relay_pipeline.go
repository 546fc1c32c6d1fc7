package pipeline

import (
	"context"
	"sync"
	"time"

	"eventrelay/internal/logger"
	"eventrelay/internal/metrics"
	"eventrelay/internal/publisher"
	"eventrelay/internal/rules"
	"eventrelay/internal/transform/audit"
)

// Source supplies raw audit event payloads.
type Source interface {
	// Pop returns the next payload, or nil when none arrived in time.
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// DeadLetterer is implemented by sources that keep rejected events.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, payload []byte, reason error) error
}

// RelayPipeline consumes raw audit events, cleanses them and publishes each
// one independently. There is no ordering between events.
type RelayPipeline struct {
	source    Source
	engine    rules.Engine
	publisher *publisher.Publisher
	topic     string
	workers   int
}

// NewRelayPipeline creates a relay pipeline. engine may be nil.
func NewRelayPipeline(source Source, engine rules.Engine, pub *publisher.Publisher, topic string, workers int) *RelayPipeline {
	return &RelayPipeline{
		source:    source,
		engine:    engine,
		publisher: pub,
		topic:     topic,
		workers:   workers,
	}
}

// Run starts the read loop and workers and blocks until ctx is done and all
// in-flight publishes have resolved.
func (p *RelayPipeline) Run(ctx context.Context) error {
	logger.Infof("Relay pipeline started (workers=%d topic=%s)", p.workers, p.topic)

	if p.workers <= 0 {
		p.workers = 8
	}

	msgCh := make(chan []byte, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, msgCh)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *RelayPipeline) Close() error {
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			logger.Errorf("Failed to close message bus: %v", err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *RelayPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncConsumerError()
			logger.Errorf("Failed to pop audit event: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *RelayPipeline) workerLoop(ctx context.Context, in <-chan []byte) {
	// In-flight sends are not aborted on shutdown.
	sendCtx := context.WithoutCancel(ctx)
	for payload := range in {
		p.handle(sendCtx, payload)
	}
}

func (p *RelayPipeline) handle(ctx context.Context, payload []byte) {
	raw, err := audit.Parse(payload)
	if err != nil {
		metrics.IncBuilt("unparsable")
		logger.Warnf("Failed to parse audit event: %v", err)
		p.reject(ctx, payload, err)
		return
	}
	event, err := audit.FromAuditEvent(raw)
	if err != nil {
		metrics.IncBuilt("invalid")
		logger.Warnf("Rejected audit event %q: %v", raw.EventID, err)
		p.reject(ctx, payload, err)
		return
	}
	metrics.IncBuilt("ok")

	if p.engine != nil {
		if matched := p.engine.Match(event); len(matched) > 0 {
			metrics.IncSuppressed(matched[0])
			logger.Debugf("Suppressed event %s (%s) by rules %v", event.EventID(), event.EventName(), matched)
			return
		}
	}

	p.publisher.Publish(ctx, event, p.topic)
}

func (p *RelayPipeline) reject(ctx context.Context, payload []byte, reason error) {
	dl, ok := p.source.(DeadLetterer)
	if !ok {
		return
	}
	if err := dl.DeadLetter(ctx, payload, reason); err != nil {
		logger.Errorf("Failed to dead-letter audit event: %v", err)
	}
}
