package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer used to publish events.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event types published to Kafka.
const (
	EventAlert    = "health.alert"
	EventSOS      = "health.sos"
	EventReminder = "health.reminder"
)

// Event is the JSON envelope written to the notifications topic.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// KafkaNotifier publishes notices as JSON events keyed by user id, so one
// user's events stay ordered within a partition.
type KafkaNotifier struct {
	writer MessageWriter
	log    *slog.Logger
	now    func() time.Time
}

// NewKafkaWriter creates a writer for topic that hashes message keys to partitions.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaNotifier creates a KafkaNotifier over writer.
func NewKafkaNotifier(writer MessageWriter, log *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: writer,
		log:    log.With("component", "notify_kafka"),
		now:    time.Now,
	}
}

type alertPayload struct {
	Level        string   `json:"level"`
	Message      string   `json:"message"`
	ShouldNotify bool     `json:"shouldNotify"`
	DoctorID     string   `json:"doctorId,omitempty"`
	Vitals       any      `json:"vitals"`
	Metrics      []string `json:"metrics,omitempty"`
}

func (k *KafkaNotifier) NotifyAlert(ctx context.Context, n AlertNotice) error {
	metrics := make([]string, 0, len(n.Alert.Breaches))
	for _, b := range n.Alert.Breaches {
		metrics = append(metrics, b.Metric)
	}
	return k.publish(ctx, EventAlert, n.UserID, alertPayload{
		Level:        string(n.Alert.Level),
		Message:      n.Alert.Message,
		ShouldNotify: n.Alert.ShouldNotify,
		DoctorID:     doctorID(n.Doctor),
		Vitals:       n.Vitals,
		Metrics:      metrics,
	})
}

func (k *KafkaNotifier) NotifySOS(ctx context.Context, n SOSNotice) error {
	return k.publish(ctx, EventSOS, n.UserID, struct {
		Event    any    `json:"event"`
		DoctorID string `json:"doctorId,omitempty"`
	}{Event: n.Event, DoctorID: doctorID(n.Doctor)})
}

func (k *KafkaNotifier) NotifyReminder(ctx context.Context, n ReminderNotice) error {
	return k.publish(ctx, EventReminder, n.Reminder.UserID, n.Reminder)
}

func (k *KafkaNotifier) publish(ctx context.Context, eventType, userID string, payload any) error {
	body, err := json.Marshal(Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: k.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(userID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.ErrorContext(ctx, "Failed to publish event", "type", eventType, "user_id", userID, "error", err)
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	k.log.DebugContext(ctx, "Event published", "type", eventType, "user_id", userID)
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
