package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/internal/event_bus"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// KafkaPublisher forwards appointment events from the bus to a Kafka topic.
// Messages are keyed by contact email so all events of one booking land on
// the same partition.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

func NewKafkaPublisher(cfg config.Kafka) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, cfg.Topic)
}

func NewKafkaPublisherWithWriter(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Register subscribes the publisher to every appointment event type.
func (p *KafkaPublisher) Register(bus *event_bus.EventBus) (unsubscribe func()) {
	unsubs := []func(){
		bus.Subscribe(event_bus.AppointmentBookedType, p.handle),
		bus.Subscribe(event_bus.AppointmentRescheduledType, p.handle),
		bus.Subscribe(event_bus.AppointmentCancelledType, p.handle),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) handle(e event_bus.Event) error {
	payload, err := json.Marshal(envelope{
		EventID:    e.Id,
		EventType:  string(e.Type),
		OccurredAt: e.Timestamp,
		Data:       e.Data,
	})
	if err != nil {
		return fmt.Errorf("could not encode event %s: %w", e.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(messageKey(e.Data)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.Id)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	msg.Headers = injectTraceHeaders(e.Context(), msg.Headers)

	if err := p.writer.WriteMessages(e.Context(), msg); err != nil {
		err := fmt.Errorf("could not publish event %s to %s: %w", e.Type, p.topic, err)
		log.Error(err)
		return err
	}
	log.Debugf("published event %s (%s)", e.Type, e.Id)
	return nil
}

func messageKey(data any) string {
	switch d := data.(type) {
	case event_bus.AppointmentBooked:
		return d.Email
	case event_bus.AppointmentRescheduled:
		return d.Email
	case event_bus.AppointmentCancelled:
		return d.Email
	default:
		return ""
	}
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
