// internal/services/notification_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront/internal/models"
)

// Notifier delivers engine events to customers and operators.
type Notifier interface {
	NotifyOrderCreated(ctx context.Context, orderID uuid.UUID) error
	NotifyLowStock(ctx context.Context, productID uuid.UUID) error
	NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) error
}

const defaultNotifyTimeout = 5 * time.Second

// NotificationService fires notifications in the background. Delivery is best
// effort: failures are logged and never reach the caller.
type NotificationService struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewNotificationService(notifier Notifier) *NotificationService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &NotificationService{
		notifier: notifier,
		timeout:  defaultNotifyTimeout,
	}
}

func (s *NotificationService) OrderCreated(orderID uuid.UUID) {
	s.dispatch("order_created", logrus.Fields{"order_id": orderID}, func(ctx context.Context) error {
		return s.notifier.NotifyOrderCreated(ctx, orderID)
	})
}

func (s *NotificationService) LowStock(productID uuid.UUID) {
	s.dispatch("low_stock", logrus.Fields{"product_id": productID}, func(ctx context.Context) error {
		return s.notifier.NotifyLowStock(ctx, productID)
	})
}

func (s *NotificationService) OrderStatusChanged(orderID uuid.UUID, status models.OrderStatus) {
	s.dispatch("order_status_changed", logrus.Fields{"order_id": orderID, "status": status}, func(ctx context.Context) error {
		return s.notifier.NotifyOrderStatusChanged(ctx, orderID, status)
	})
}

// Wait blocks until every notification in flight has finished.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) dispatch(event string, fields logrus.Fields, send func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			logrus.WithFields(fields).WithError(err).WithField("event", event).Warn("Failed to send notification")
		}
	}()
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct{}

func (LogNotifier) NotifyOrderCreated(_ context.Context, orderID uuid.UUID) error {
	logrus.WithField("order_id", orderID).Info("Order confirmation notification")
	return nil
}

func (LogNotifier) NotifyLowStock(_ context.Context, productID uuid.UUID) error {
	logrus.WithField("product_id", productID).Warn("Low stock alert")
	return nil
}

func (LogNotifier) NotifyOrderStatusChanged(_ context.Context, orderID uuid.UUID, status models.OrderStatus) error {
	logrus.WithFields(logrus.Fields{"order_id": orderID, "status": status}).Info("Shipping update notification")
	return nil
}
