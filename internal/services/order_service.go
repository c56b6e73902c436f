// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/database"
	"github.com/javajoker/storefront/internal/metrics"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/utils"
)

// OrderService turns carts into orders. Stock decrements, ledger entries and
// the order rows of one checkout commit together or not at all.
type OrderService struct {
	db            *gorm.DB
	inventory     *InventoryService
	notifications *NotificationService
	scheduler     RestockScheduler
	shipping      ShippingPolicy
	timeout       time.Duration
}

// MaxLineQuantity bounds a single product's quantity in one order, after
// repeated lines are merged.
const MaxLineQuantity = 10000

type OrderLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,max=10000"`
}

type CreateOrderRequest struct {
	UserID          uuid.UUID              `json:"user_id" validate:"required"`
	Items           []OrderLine            `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" validate:"-"`
	PaymentIntentID string                 `json:"payment_intent_id,omitempty" validate:"max=255"`
	PaymentMethod   models.PaymentMethod   `json:"payment_method" validate:"required,oneof=stripe paypal"`
	// AwaitPayment creates the order as pending instead of processing.
	AwaitPayment bool `json:"await_payment,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type AttachPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=255"`
}

// placement is a committed order plus what the caller still has to schedule.
type placement struct {
	order    *models.Order
	touched  []uuid.UUID
	lowStock []uuid.UUID
}

func NewOrderService(db *gorm.DB, inventory *InventoryService, notifications *NotificationService, scheduler RestockScheduler, cfg config.EngineConfig) *OrderService {
	if scheduler == nil {
		scheduler = noopScheduler{}
	}
	return &OrderService{
		db:            db,
		inventory:     inventory,
		notifications: notifications,
		scheduler:     scheduler,
		shipping:      NewShippingPolicy(cfg),
		timeout:       cfg.OrderTimeout,
	}
}

// CreateOrder validates the cart, decrements stock for every line and
// persists the order in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	p, err := s.place(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(p.lowStock) > 0 {
		s.scheduler.Schedule(p.lowStock...)
	}
	return p.order, nil
}

func (s *OrderService) place(ctx context.Context, req *CreateOrderRequest) (*placement, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	p, err := s.placeTx(ctx, req)
	if err != nil {
		kind := apperrors.KindOf(err)
		metrics.OrdersFailed.WithLabelValues(string(kind)).Inc()
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		logrus.WithError(err).WithField("kind", kind).Warn("Order creation failed")
		return nil, err
	}

	order := p.order
	metrics.OrdersCreated.WithLabelValues(string(order.Status)).Inc()
	metrics.InventoryAdjustments.WithLabelValues(string(models.AdjustmentReasonSale)).Add(float64(len(order.Items)))
	span.SetAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.Int("order.items", len(order.Items)),
	)
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"status":   order.Status,
		"total":    order.TotalAmount.StringFixed(2),
	}).Info("Order created")

	if s.notifications != nil {
		s.notifications.OrderCreated(order.ID)
	}
	return p, nil
}

func (s *OrderService) placeTx(ctx context.Context, req *CreateOrderRequest) (*placement, error) {
	if req == nil {
		return nil, apperrors.NewInvalidInput("order request is required", nil)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewInvalidInput("invalid order request", err)
	}
	if err := utils.ValidateStruct(&req.ShippingAddress); err != nil {
		return nil, apperrors.NewInvalidAddress(err)
	}

	status := models.OrderStatusProcessing
	if req.AwaitPayment {
		status = models.OrderStatusPending
	} else if req.PaymentIntentID == "" {
		return nil, apperrors.NewPaymentReferenceMissing()
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelled(err)
	}

	order := &models.Order{
		BaseModel:       models.BaseModel{ID: uuid.New()},
		UserID:          req.UserID,
		Status:          status,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	if req.PaymentIntentID != "" {
		intent := req.PaymentIntentID
		order.PaymentIntentID = &intent
	}

	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}
	p := &placement{order: order}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if order.PaymentIntentID != nil {
			if err := ensureIntentUnused(tx, *order.PaymentIntentID, uuid.Nil); err != nil {
				return err
			}
		}

		note := fmt.Sprintf("order %s", order.ID)
		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))

		for _, line := range lines {
			res, err := s.inventory.AdjustTx(tx, line.ProductID, -line.Quantity, models.AdjustmentReasonSale, note)
			if err != nil {
				return err
			}

			item := models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				PriceAtTime: res.Product.Price,
			}
			subtotal = subtotal.Add(item.LineTotal())
			items = append(items, item)

			p.touched = append(p.touched, line.ProductID)
			if res.LowStock {
				p.lowStock = append(p.lowStock, line.ProductID)
			}
		}

		shipping := s.shipping.ShippingFor(subtotal)
		order.SubtotalAmount = subtotal.Round(2)
		order.ShippingAmount = shipping
		order.TotalAmount = subtotal.Add(shipping).Round(2)

		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return apperrors.Wrap(err, "failed to create order")
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperrors.Wrap(err, "failed to create order items")
		}

		order.Items = items
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create order")
	}

	return p, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("order", orderID)
		}
		return nil, apperrors.Wrap(err, "failed to load order")
	}
	return &order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to count orders")
	}

	var orders []models.Order
	query = utils.ApplySort(query, params, []string{"created_at", "total_amount", "status"})
	if err := utils.ApplyPagination(query, params).Preload("Items").Find(&orders).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to fetch orders")
	}

	return orders, total, nil
}

// UpdateStatus moves an order along its state machine. The write only lands
// if the status is still the one that was validated. Cancelling returns every
// line to stock through the ledger in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, apperrors.NewInvalidInput("unknown order status "+string(next), nil)
	}

	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.String("order.status", string(next)))

	var order models.Order
	var restocked []uuid.UUID
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("order", orderID)
			}
			return apperrors.Wrap(err, "failed to load order")
		}

		current := order.Status
		if !current.CanTransitionTo(next) {
			return apperrors.NewInvalidTransition(string(current), string(next))
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, current).
			Update("status", next)
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "failed to update order status")
		}
		if res.RowsAffected == 0 {
			return apperrors.NewConflict("order status changed concurrently", nil)
		}

		if next == models.OrderStatusCancelled {
			note := fmt.Sprintf("order %s cancelled", order.ID)
			items := append([]models.OrderItem(nil), order.Items...)
			sortItems(items)
			for _, item := range items {
				if _, err := s.inventory.AdjustTx(tx, item.ProductID, item.Quantity, models.AdjustmentReasonRestock, note); err != nil {
					return err
				}
				restocked = append(restocked, item.ProductID)
			}
		}

		order.Status = next
		return nil
	})
	if err != nil {
		err = apperrors.Wrap(err, "failed to update order status")
		span.RecordError(err)
		return nil, err
	}

	if len(restocked) > 0 {
		metrics.InventoryAdjustments.WithLabelValues(string(models.AdjustmentReasonRestock)).Add(float64(len(restocked)))
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   next,
	}).Info("Order status updated")

	if s.notifications != nil {
		s.notifications.OrderStatusChanged(order.ID, next)
	}
	return &order, nil
}

// AttachPayment records the payment intent of a pending order and moves it to
// processing.
func (s *OrderService) AttachPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string) (*models.Order, error) {
	if paymentIntentID == "" {
		return nil, apperrors.NewPaymentReferenceMissing()
	}

	var order models.Order
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("order", orderID)
			}
			return apperrors.Wrap(err, "failed to load order")
		}

		if order.Status != models.OrderStatusPending {
			return apperrors.NewInvalidTransition(string(order.Status), string(models.OrderStatusProcessing))
		}
		if err := ensureIntentUnused(tx, paymentIntentID, order.ID); err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			Updates(map[string]interface{}{
				"payment_intent_id": paymentIntentID,
				"status":            models.OrderStatusProcessing,
			})
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "failed to attach payment")
		}
		if res.RowsAffected == 0 {
			return apperrors.NewConflict("order status changed concurrently", nil)
		}

		order.PaymentIntentID = &paymentIntentID
		order.Status = models.OrderStatusProcessing
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to attach payment")
	}

	logrus.WithField("order_id", orderID).Info("Payment attached to order")
	if s.notifications != nil {
		s.notifications.OrderStatusChanged(order.ID, order.Status)
	}
	return &order, nil
}

func (s *OrderService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ensureIntentUnused rejects a payment intent already held by another order.
// The unique index backs this check up under concurrency.
func ensureIntentUnused(tx *gorm.DB, paymentIntentID string, self uuid.UUID) error {
	var count int64
	err := tx.Model(&models.Order{}).
		Where("payment_intent_id = ? AND id <> ?", paymentIntentID, self).
		Count(&count).Error
	if err != nil {
		return apperrors.Wrap(err, "failed to check payment intent")
	}
	if count > 0 {
		return apperrors.NewConflict(fmt.Sprintf("payment intent %s is already attached to an order", paymentIntentID), nil)
	}
	return nil
}

// mergeLines folds repeated products into one line and orders lines by
// product id, so concurrent orders take row locks in the same order.
func mergeLines(lines []OrderLine) ([]OrderLine, error) {
	quantities := make(map[uuid.UUID]int, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		current, ok := quantities[line.ProductID]
		if !ok {
			ids = append(ids, line.ProductID)
		}
		if line.Quantity <= 0 || line.Quantity > MaxLineQuantity-current {
			return nil, apperrors.NewInvalidInput(
				fmt.Sprintf("quantity for product %s must be between 1 and %d", line.ProductID, MaxLineQuantity), nil)
		}
		quantities[line.ProductID] = current + line.Quantity
	}
	sortIDs(ids)

	merged := make([]OrderLine, 0, len(ids))
	for _, id := range ids {
		merged = append(merged, OrderLine{ProductID: id, Quantity: quantities[id]})
	}
	return merged, nil
}

func sortItems(items []models.OrderItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})
}
