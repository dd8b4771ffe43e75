package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/richxcame/scamshield/pkg/config"
	"github.com/richxcame/scamshield/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Event types emitted by the engine
const (
	TypeScanCompleted   = "scan.completed"
	TypeReportSubmitted = "report.submitted"
)

// Event is the envelope published on the bus
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent marshals data into a fresh event envelope
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Decode unmarshals the event payload into v
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Handler consumes one event
type Handler func(ctx context.Context, event *Event)

// Bus publishes engine results. Publishing is fire-and-forget for callers:
// a failed publish is logged, never surfaced as a scoring failure.
type Bus interface {
	Publish(ctx context.Context, event *Event) error
	Subscribe(eventType string, handler Handler) error
	Close()
}

// NATSBus publishes events to "<prefix>.<type>" subjects
type NATSBus struct {
	conn   *nats.Conn
	prefix string
	subs   []*nats.Subscription
}

// Connect dials NATS with reconnect handling
func Connect(cfg config.NATSConfig, serviceName string) (*NATSBus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSBus{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the fully qualified subject for an event type
func Subject(prefix, eventType string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Publish sends the event with the caller's trace context in the headers
func (b *NATSBus) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	hdr := nats.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hdr))
	hdr.Set("Event-Id", event.ID)

	msg := &nats.Msg{Subject: Subject(b.prefix, event.Type), Data: data, Header: hdr}
	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Subscribe delivers events of one type to handler
func (b *NATSBus) Subscribe(eventType string, handler Handler) error {
	sub, err := b.conn.Subscribe(Subject(b.prefix, eventType), func(m *nats.Msg) {
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(m.Header))

		var event Event
		if err := json.Unmarshal(m.Data, &event); err != nil {
			logger.Warn("dropping malformed event", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		handler(ctx, &event)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", eventType, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Close drains subscriptions and the connection
func (b *NATSBus) Close() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// NoopBus drops every event. Used when NATS is disabled.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, *Event) error { return nil }
func (NoopBus) Subscribe(string, Handler) error       { return nil }
func (NoopBus) Close()                                {}

// PublishAsync emits an event without blocking the caller. Failures are logged.
func PublishAsync(ctx context.Context, bus Bus, eventType, source string, data interface{}) {
	event, err := NewEvent(eventType, source, data)
	if err != nil {
		logger.WithContext(ctx).Warn("failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}

	// detach from request cancellation, keep the trace and correlation id
	pubCtx := context.WithoutCancel(ctx)
	go func() {
		if err := bus.Publish(pubCtx, event); err != nil {
			logger.WithContext(pubCtx).Warn("failed to publish event",
				zap.String("type", eventType),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}()
}
