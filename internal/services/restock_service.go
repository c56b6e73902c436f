// internal/services/restock_service.go
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

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/metrics"
	"github.com/javajoker/storefront/internal/models"
)

// RestockService turns low stock into purchase orders, one per supplier.
// Supplier failures are logged and counted; they never touch inventory.
type RestockService struct {
	db            *gorm.DB
	supplier      SupplierGateway
	notifications *NotificationService
	cooldown      Cooldown
}

func NewRestockService(db *gorm.DB, supplier SupplierGateway, notifications *NotificationService, cooldown Cooldown) *RestockService {
	if supplier == nil {
		supplier = LogSupplierGateway{}
	}
	return &RestockService{
		db:            db,
		supplier:      supplier,
		notifications: notifications,
		cooldown:      cooldown,
	}
}

// EvaluateAndGroup filters productIDs to those at or below their threshold,
// groups them by supplier and submits one purchase order per supplier.
// Requests are ordered by supplier id and their lines by product id.
func (s *RestockService) EvaluateAndGroup(ctx context.Context, productIDs []uuid.UUID) ([]PurchaseOrderRequest, error) {
	ctx, span := tracer.Start(ctx, "RestockService.EvaluateAndGroup")
	defer span.End()

	ids := sortedIDs(productIDs)
	span.SetAttributes(attribute.Int("restock.candidates", len(ids)))
	if len(ids) == 0 {
		return nil, nil
	}

	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("id IN ? AND inventory_count <= low_stock_threshold", ids).
		Find(&products).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load low stock products")
	}
	sortProducts(products)

	requests := s.group(ctx, products)
	span.SetAttributes(attribute.Int("restock.requests", len(requests)))

	var errs []error
	for i := range requests {
		if err := s.submit(ctx, &requests[i]); err != nil {
			errs = append(errs, err)
		}
	}

	return requests, errors.Join(errs...)
}

func (s *RestockService) group(ctx context.Context, products []models.Product) []PurchaseOrderRequest {
	bySupplier := make(map[uuid.UUID]*PurchaseOrderRequest)
	var suppliers []uuid.UUID

	for i := range products {
		p := &products[i]
		// one low-stock alert per product per cooldown window
		if s.notifications != nil && s.acquire(ctx, alertKey(p.ID)) {
			s.notifications.LowStock(p.ID)
		}

		entry := logrus.WithFields(logrus.Fields{
			"product_id":      p.ID,
			"sku":             p.SKU,
			"inventory_count": p.InventoryCount,
		})
		if p.SupplierID == nil {
			entry.Warn("Low stock product has no supplier, skipping restock")
			continue
		}
		if p.RestockQuantity <= 0 {
			entry.Warn("Low stock product has no restock quantity, skipping restock")
			continue
		}
		if !s.acquire(ctx, cooldownKey(*p.SupplierID, p.ID)) {
			metrics.RestockRequests.WithLabelValues(metrics.OutcomeSuppressed).Inc()
			entry.Debug("Restock suppressed by cooldown")
			continue
		}

		req, ok := bySupplier[*p.SupplierID]
		if !ok {
			req = &PurchaseOrderRequest{SupplierID: *p.SupplierID, TotalAmount: decimal.Zero}
			bySupplier[*p.SupplierID] = req
			suppliers = append(suppliers, *p.SupplierID)
		}

		line := PurchaseOrderLine{
			ProductID: p.ID,
			SKU:       p.SKU,
			Quantity:  p.RestockQuantity,
			UnitCost:  p.CostPrice,
		}
		req.Items = append(req.Items, line)
		req.TotalAmount = req.TotalAmount.Add(line.UnitCost.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	sortIDs(suppliers)
	requests := make([]PurchaseOrderRequest, 0, len(suppliers))
	for _, id := range suppliers {
		requests = append(requests, *bySupplier[id])
	}
	return requests
}

// submit persists the request as a draft purchase order, hands it to the
// supplier and marks it sent on success.
func (s *RestockService) submit(ctx context.Context, req *PurchaseOrderRequest) error {
	po := &models.PurchaseOrder{
		SupplierID:  req.SupplierID,
		Status:      models.PurchaseOrderStatusDraft,
		TotalAmount: req.TotalAmount,
	}
	for _, line := range req.Items {
		po.Items = append(po.Items, models.PurchaseOrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
		})
	}

	if err := s.db.WithContext(ctx).Create(po).Error; err != nil {
		metrics.RestockRequests.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.release(ctx, req)
		return apperrors.Wrap(err, fmt.Sprintf("failed to persist purchase order for supplier %s", req.SupplierID))
	}
	req.PurchaseOrderID = po.ID

	entry := logrus.WithFields(logrus.Fields{
		"purchase_order_id": po.ID,
		"supplier_id":       req.SupplierID,
		"items":             len(req.Items),
	})

	if err := s.supplier.SubmitPurchaseOrder(ctx, *req); err != nil {
		metrics.RestockRequests.WithLabelValues(metrics.OutcomeFailed).Inc()
		entry.WithError(err).Error("Supplier rejected purchase order")
		s.release(ctx, req)
		return nil
	}

	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", po.ID, models.PurchaseOrderStatusDraft).
		Updates(map[string]interface{}{
			"status":  models.PurchaseOrderStatusSent,
			"sent_at": now,
		}).Error
	if err != nil {
		// the supplier has it; a draft left behind is only a bookkeeping gap
		entry.WithError(err).Warn("Failed to mark purchase order as sent")
	}

	metrics.RestockRequests.WithLabelValues(metrics.OutcomeSent).Inc()
	entry.Info("Purchase order sent to supplier")
	return nil
}

func (s *RestockService) acquire(ctx context.Context, key string) bool {
	if s.cooldown == nil {
		return true
	}
	ok, err := s.cooldown.Acquire(ctx, key)
	if err != nil {
		// a broken cooldown store must not stop restocking
		logrus.WithError(err).WithField("key", key).Warn("Restock cooldown unavailable")
		return true
	}
	return ok
}

func (s *RestockService) release(ctx context.Context, req *PurchaseOrderRequest) {
	if s.cooldown == nil {
		return
	}
	for _, line := range req.Items {
		if err := s.cooldown.Release(ctx, cooldownKey(req.SupplierID, line.ProductID)); err != nil {
			logrus.WithError(err).WithField("product_id", line.ProductID).Warn("Failed to release restock cooldown")
		}
	}
}

func cooldownKey(supplierID, productID uuid.UUID) string {
	return supplierID.String() + ":" + productID.String()
}

func alertKey(productID uuid.UUID) string {
	return "low_stock_alert:" + productID.String()
}

func sortProducts(products []models.Product) {
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID.String() < products[j].ID.String()
	})
}
