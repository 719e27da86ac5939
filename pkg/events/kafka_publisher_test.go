package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/klokku/appointments/internal/event_bus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	fail     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_PublishesBusEvents(t *testing.T) {
	bus := event_bus.NewEventBus()
	writer := &fakeWriter{}
	publisher := NewKafkaPublisherWithWriter(writer, "appointments.events")
	unsubscribe := publisher.Register(bus)
	defer unsubscribe()

	e := event_bus.NewEvent(context.Background(), event_bus.AppointmentBookedType, event_bus.AppointmentBooked{
		FullName: "Asha Rao",
		Email:    "asha@example.com",
		Date:     "2025-09-01",
		Time:     "10:00",
	})
	require.NoError(t, bus.Publish(e))
	require.NoError(t, bus.Publish(event_bus.NewEvent(context.Background(), event_bus.AppointmentCancelledType, event_bus.AppointmentCancelled{Email: "asha@example.com"})))

	require.Len(t, writer.messages, 2)
	msg := writer.messages[0]
	assert.Equal(t, "asha@example.com", string(msg.Key))
	assert.Equal(t, e.Id, header(msg, "event_id"))
	assert.Equal(t, "appointment.booked", header(msg, "event_type"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "appointment.booked", decoded["event_type"])
	data := decoded["data"].(map[string]any)
	assert.Equal(t, "10:00", data["time"])

	assert.Equal(t, "appointment.cancelled", header(writer.messages[1], "event_type"))
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	bus := event_bus.NewEventBus()
	writer := &fakeWriter{fail: errors.New("broker down")}
	NewKafkaPublisherWithWriter(writer, "appointments.events").Register(bus)

	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.AppointmentBookedType, event_bus.AppointmentBooked{}))
	assert.ErrorContains(t, err, "broker down")
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}
