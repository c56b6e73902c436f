// internal/services/product_service.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/database"
	"github.com/javajoker/storefront/internal/metrics"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/utils"
)

// ProductService is the catalog admin path. It never writes inventory_count
// directly; opening stock goes through the ledger.
type ProductService struct {
	db        *gorm.DB
	inventory *InventoryService
	scheduler RestockScheduler
}

type CreateSupplierRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type CreateProductRequest struct {
	SKU               string          `json:"sku" validate:"required,sku"`
	Name              string          `json:"name" validate:"required,min=2,max=255"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price" validate:"gt=0"`
	CostPrice         decimal.Decimal `json:"cost_price" validate:"gte=0"`
	InitialStock      int             `json:"initial_stock" validate:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
	RestockQuantity   int             `json:"restock_quantity" validate:"gte=0"`
	SupplierID        *uuid.UUID      `json:"supplier_id,omitempty"`
}

// UpdateProductRequest carries catalog attributes only. Nil fields are left
// unchanged.
type UpdateProductRequest struct {
	Name              *string          `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Description       *string          `json:"description,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gt=0"`
	CostPrice         *decimal.Decimal `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	RestockQuantity   *int             `json:"restock_quantity,omitempty" validate:"omitempty,gte=0"`
	SupplierID        *uuid.UUID       `json:"supplier_id,omitempty"`
}

func NewProductService(db *gorm.DB, inventory *InventoryService, scheduler RestockScheduler) *ProductService {
	if scheduler == nil {
		scheduler = noopScheduler{}
	}
	return &ProductService{
		db:        db,
		inventory: inventory,
		scheduler: scheduler,
	}
}

func (s *ProductService) CreateSupplier(ctx context.Context, req *CreateSupplierRequest) (*models.Supplier, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewInvalidInput("invalid supplier", err)
	}

	supplier := &models.Supplier{
		Name:   req.Name,
		Email:  req.Email,
		Status: models.SupplierStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(supplier).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to create supplier")
	}
	return supplier, nil
}

// CreateProduct registers a product with zero stock, then books the initial
// stock as a restock ledger entry so count and ledger agree from the start.
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewInvalidInput("invalid product", err)
	}

	product := &models.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price.Round(2),
		CostPrice:         req.CostPrice.Round(2),
		LowStockThreshold: req.LowStockThreshold,
		RestockQuantity:   req.RestockQuantity,
		SupplierID:        req.SupplierID,
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := ensureSupplier(tx, req.SupplierID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Product{}).Where("sku = ?", req.SKU).Count(&count).Error; err != nil {
			return apperrors.Wrap(err, "failed to check sku")
		}
		if count > 0 {
			return apperrors.NewConflict("sku "+req.SKU+" already exists", nil)
		}

		if err := tx.Create(product).Error; err != nil {
			return apperrors.Wrap(err, "failed to create product")
		}

		if req.InitialStock > 0 {
			res, err := s.inventory.AdjustTx(tx, product.ID, req.InitialStock, models.AdjustmentReasonRestock, "opening stock")
			if err != nil {
				return err
			}
			product = res.Product
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create product")
	}

	if req.InitialStock > 0 {
		metrics.InventoryAdjustments.WithLabelValues(string(models.AdjustmentReasonRestock)).Inc()
	}
	logrus.WithFields(logrus.Fields{
		"product_id": product.ID,
		"sku":        product.SKU,
		"stock":      product.InventoryCount,
	}).Info("Product created")

	if product.IsLowStock() {
		s.scheduler.Schedule(product.ID)
	}
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Supplier").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("product", productID)
		}
		return nil, apperrors.Wrap(err, "failed to load product")
	}
	return &product, nil
}

// UpdateProduct changes catalog attributes. Existing orders keep their
// price_at_time. Lowering stock below a new threshold queues a restock check.
func (s *ProductService) UpdateProduct(ctx context.Context, productID uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewInvalidInput("invalid product update", err)
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["price"] = req.Price.Round(2)
	}
	if req.CostPrice != nil {
		updates["cost_price"] = req.CostPrice.Round(2)
	}
	if req.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.RestockQuantity != nil {
		updates["restock_quantity"] = *req.RestockQuantity
	}
	if req.SupplierID != nil {
		updates["supplier_id"] = *req.SupplierID
	}

	var product models.Product
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("product", productID)
			}
			return apperrors.Wrap(err, "failed to load product")
		}
		if len(updates) == 0 {
			return nil
		}
		if err := ensureSupplier(tx, req.SupplierID); err != nil {
			return err
		}

		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return apperrors.Wrap(err, "failed to update product")
		}
		return tx.First(&product, "id = ?", productID).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to update product")
	}

	logrus.WithFields(logrus.Fields{
		"product_id": product.ID,
		"fields":     len(updates),
	}).Info("Product updated")

	if product.IsLowStock() {
		s.scheduler.Schedule(product.ID)
	}
	return &product, nil
}

func ensureSupplier(tx *gorm.DB, supplierID *uuid.UUID) error {
	if supplierID == nil {
		return nil
	}
	var supplier models.Supplier
	if err := tx.Select("id").First(&supplier, "id = ?", *supplierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("supplier", *supplierID)
		}
		return apperrors.Wrap(err, "failed to load supplier")
	}
	return nil
}
