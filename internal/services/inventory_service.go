// internal/services/inventory_service.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/database"
	"github.com/javajoker/storefront/internal/metrics"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/utils"
)

// InventoryService owns every write to products.inventory_count. Each change
// is paired with an append-only ledger entry in the same transaction.
type InventoryService struct {
	db        *gorm.DB
	scheduler RestockScheduler
}

type AdjustInventoryRequest struct {
	Quantity int                     `json:"quantity" validate:"required"`
	Reason   models.AdjustmentReason `json:"reason" validate:"required,oneof=restock damage loss audit sale"`
	Notes    string                  `json:"notes,omitempty" validate:"max=1000"`
}

type AdjustmentResult struct {
	Adjustment *models.InventoryAdjustment `json:"adjustment"`
	Product    *models.Product             `json:"product"`
	LowStock   bool                        `json:"low_stock"`
}

type StockLevel struct {
	ProductID         uuid.UUID          `json:"product_id"`
	SKU               string             `json:"sku"`
	Name              string             `json:"name"`
	InventoryCount    int                `json:"inventory_count"`
	LowStockThreshold int                `json:"low_stock_threshold"`
	Status            models.StockStatus `json:"status"`
}

func NewInventoryService(db *gorm.DB, scheduler RestockScheduler) *InventoryService {
	if scheduler == nil {
		scheduler = noopScheduler{}
	}
	return &InventoryService{
		db:        db,
		scheduler: scheduler,
	}
}

// Adjust applies delta to the product's stock and records it in the ledger.
// A product left at or below its threshold is queued for restock evaluation
// after commit.
func (s *InventoryService) Adjust(ctx context.Context, productID uuid.UUID, delta int, reason models.AdjustmentReason, notes string) (*AdjustmentResult, error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Adjust")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Int("inventory.delta", delta),
		attribute.String("inventory.reason", string(reason)),
	)

	var result *AdjustmentResult
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		result, err = s.AdjustTx(tx, productID, delta, reason, notes)
		return err
	})
	if err != nil {
		err = apperrors.Wrap(err, "failed to adjust inventory")
		span.RecordError(err)
		return nil, err
	}

	metrics.InventoryAdjustments.WithLabelValues(string(reason)).Inc()
	logrus.WithFields(logrus.Fields{
		"product_id":      productID,
		"delta":           delta,
		"reason":          reason,
		"inventory_count": result.Product.InventoryCount,
	}).Info("Inventory adjusted")

	if result.LowStock {
		s.scheduler.Schedule(productID)
	}
	return result, nil
}

// AdjustTx is Adjust inside a caller-owned transaction. It never schedules
// restock work; the caller does that once the transaction has committed.
func (s *InventoryService) AdjustTx(tx *gorm.DB, productID uuid.UUID, delta int, reason models.AdjustmentReason, notes string) (*AdjustmentResult, error) {
	if delta == 0 {
		return nil, apperrors.NewInvalidInput("adjustment quantity must not be zero", nil)
	}
	if !reason.Valid() {
		return nil, apperrors.NewInvalidInput("unknown adjustment reason "+string(reason), nil)
	}

	// Conditional write: the row is only touched when the result stays
	// non-negative, so concurrent decrements serialize on the row.
	res := tx.Model(&models.Product{}).
		Where("id = ? AND inventory_count + ? >= 0", productID, delta).
		Updates(map[string]interface{}{
			"inventory_count": gorm.Expr("inventory_count + ?", delta),
			"ledger_version":  gorm.Expr("ledger_version + 1"),
		})
	if res.Error != nil {
		return nil, apperrors.Wrap(res.Error, "failed to update stock")
	}

	if res.RowsAffected == 0 {
		var current models.Product
		if err := tx.Select("id", "inventory_count").First(&current, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NewNotFound("product", productID)
			}
			return nil, apperrors.Wrap(err, "failed to load product")
		}
		metrics.InsufficientStock.Inc()
		return nil, apperrors.NewInsufficientStock(productID, -delta, current.InventoryCount)
	}

	var product models.Product
	if err := tx.First(&product, "id = ?", productID).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to reload product")
	}

	adjustment := &models.InventoryAdjustment{
		ProductID: productID,
		Sequence:  product.LedgerVersion,
		Quantity:  delta,
		Reason:    reason,
		Notes:     notes,
	}
	if err := tx.Create(adjustment).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to record inventory adjustment")
	}

	return &AdjustmentResult{
		Adjustment: adjustment,
		Product:    &product,
		LowStock:   product.IsLowStock(),
	}, nil
}

type auditRow struct {
	ID             uuid.UUID
	SKU            string
	InventoryCount int
	LedgerSum      int
}

// Audit compares every product's live count with the sum of its ledger and
// returns the products that disagree. It never writes.
func (s *InventoryService) Audit(ctx context.Context) ([]models.Discrepancy, error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Audit")
	defer span.End()

	// One statement, so counts and sums come from the same snapshot.
	var rows []auditRow
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.id, products.sku, products.inventory_count, " +
			"COALESCE((SELECT SUM(a.quantity) FROM inventory_adjustments a WHERE a.product_id = products.id), 0) AS ledger_sum").
		Order("products.sku").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to audit inventory")
	}

	discrepancies := make([]models.Discrepancy, 0)
	for _, row := range rows {
		diff := row.InventoryCount - row.LedgerSum
		if diff == 0 {
			continue
		}
		if diff < 0 {
			diff = -diff
		}
		discrepancies = append(discrepancies, models.Discrepancy{
			ProductID:   row.ID,
			SKU:         row.SKU,
			SystemCount: row.InventoryCount,
			LedgerSum:   row.LedgerSum,
			Difference:  diff,
		})
	}

	if len(discrepancies) > 0 {
		logrus.WithField("products", len(discrepancies)).Warn("Inventory drift detected")
	}
	span.SetAttributes(attribute.Int("audit.discrepancies", len(discrepancies)))
	return discrepancies, nil
}

// History lists a product's ledger entries, newest first by sequence.
func (s *InventoryService) History(ctx context.Context, productID uuid.UUID, params utils.PaginationParams) ([]models.InventoryAdjustment, int64, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.Select("id").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperrors.NewNotFound("product", productID)
		}
		return nil, 0, apperrors.Wrap(err, "failed to load product")
	}

	query := db.Model(&models.InventoryAdjustment{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to count adjustments")
	}

	var adjustments []models.InventoryAdjustment
	if err := utils.ApplyPagination(query.Order("sequence DESC"), params).Find(&adjustments).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to fetch adjustments")
	}

	return adjustments, total, nil
}

// StockLevels lists products with their stock status. An empty filter
// returns every product.
func (s *InventoryService) StockLevels(ctx context.Context, filter models.StockStatus) ([]StockLevel, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	switch filter {
	case "":
	case models.StockStatusOutOfStock:
		query = query.Where("inventory_count <= 0")
	case models.StockStatusLowStock:
		query = query.Where("inventory_count > 0 AND inventory_count <= low_stock_threshold")
	case models.StockStatusInStock:
		query = query.Where("inventory_count > low_stock_threshold")
	default:
		return nil, apperrors.NewInvalidInput("unknown stock status "+string(filter), nil)
	}

	var products []models.Product
	if err := query.Order("inventory_count ASC, sku ASC").Find(&products).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to fetch stock levels")
	}

	levels := make([]StockLevel, 0, len(products))
	for i := range products {
		p := &products[i]
		levels = append(levels, StockLevel{
			ProductID:         p.ID,
			SKU:               p.SKU,
			Name:              p.Name,
			InventoryCount:    p.InventoryCount,
			LowStockThreshold: p.LowStockThreshold,
			Status:            p.StockStatus(),
		})
	}
	return levels, nil
}
