// internal/services/kafka_notifier.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/models"
)

const (
	EventOrderCreated       = "order.created"
	EventLowStock           = "inventory.low_stock"
	EventOrderStatusChanged = "order.status_changed"
)

type NotificationEvent struct {
	Type        string             `json:"type"`
	AggregateID uuid.UUID          `json:"aggregate_id"`
	Status      models.OrderStatus `json:"status,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notification events for the delivery service to
// consume. Messages are keyed by aggregate id, so events for one order stay
// on one partition.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaNotifier(cfg config.KafkaConfig) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	})
}

func newKafkaNotifier(writer messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, now: time.Now}
}

func (n *KafkaNotifier) NotifyOrderCreated(ctx context.Context, orderID uuid.UUID) error {
	return n.publish(ctx, NotificationEvent{Type: EventOrderCreated, AggregateID: orderID})
}

func (n *KafkaNotifier) NotifyLowStock(ctx context.Context, productID uuid.UUID) error {
	return n.publish(ctx, NotificationEvent{Type: EventLowStock, AggregateID: productID})
}

func (n *KafkaNotifier) NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) error {
	return n.publish(ctx, NotificationEvent{Type: EventOrderStatusChanged, AggregateID: orderID, Status: status})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) publish(ctx context.Context, event NotificationEvent) error {
	event.OccurredAt = n.now().UTC()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}
