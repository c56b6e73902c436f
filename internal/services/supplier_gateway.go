// internal/services/supplier_gateway.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PurchaseOrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// PurchaseOrderRequest is one restock request: every under-threshold product
// of a single supplier.
type PurchaseOrderRequest struct {
	PurchaseOrderID uuid.UUID           `json:"purchase_order_id"`
	SupplierID      uuid.UUID           `json:"supplier_id"`
	Items           []PurchaseOrderLine `json:"items"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
}

// SupplierGateway hands purchase orders to suppliers. Retry and backoff are
// the gateway's concern.
type SupplierGateway interface {
	SubmitPurchaseOrder(ctx context.Context, req PurchaseOrderRequest) error
}

// LogSupplierGateway only logs the request. Used when no broker is configured.
type LogSupplierGateway struct{}

func (LogSupplierGateway) SubmitPurchaseOrder(_ context.Context, req PurchaseOrderRequest) error {
	logrus.WithFields(logrus.Fields{
		"purchase_order_id": req.PurchaseOrderID,
		"supplier_id":       req.SupplierID,
		"items":             len(req.Items),
		"total":             req.TotalAmount.StringFixed(2),
	}).Info("Purchase order submitted")
	return nil
}

const (
	supplierExchangeType = "topic"
	amqpDialAttempts     = 5
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSupplierGateway publishes purchase orders to a topic exchange with
// routing key purchase_order.<supplier_id>.
type AMQPSupplierGateway struct {
	ch       amqpPublisher
	exchange string
}

func NewAMQPSupplierGateway(ch amqpPublisher, exchange string) *AMQPSupplierGateway {
	return &AMQPSupplierGateway{ch: ch, exchange: exchange}
}

func (g *AMQPSupplierGateway) SubmitPurchaseOrder(ctx context.Context, req PurchaseOrderRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("could not marshal purchase order: %w", err)
	}

	routingKey := fmt.Sprintf("purchase_order.%s", req.SupplierID)

	err = g.ch.PublishWithContext(ctx,
		g.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    req.PurchaseOrderID.String(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("could not publish purchase order %s: %w", req.PurchaseOrderID, err)
	}
	return nil
}

// SetupAMQP dials the broker and declares the supplier exchange.
func SetupAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	// Simple retry logic for broker startup
	for i := 0; i < amqpDialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logrus.WithError(err).WithField("attempt", i+1).Warn("Failed to connect to RabbitMQ")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,             // name
		supplierExchangeType, // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}
