// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	BaseModel
	SKU            string          `json:"sku" gorm:"size:64;not null;uniqueIndex"`
	Name           string          `json:"name" gorm:"size:255;not null"`
	Description    string          `json:"description" gorm:"type:text"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	CostPrice      decimal.Decimal `json:"cost_price" gorm:"type:decimal(10,2);not null"`
	InventoryCount int             `json:"inventory_count" gorm:"not null;default:0;check:chk_products_inventory_non_negative,inventory_count >= 0"`
	// LedgerVersion counts the ledger entries written for this product.
	LedgerVersion     int64      `json:"-" gorm:"not null;default:0"`
	LowStockThreshold int        `json:"low_stock_threshold" gorm:"not null"`
	RestockQuantity   int        `json:"restock_quantity" gorm:"not null"`
	SupplierID        *uuid.UUID `json:"supplier_id,omitempty" gorm:"type:uuid;index"`

	// Relationships
	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

// IsLowStock reports whether the product is at or below its restock threshold.
func (p *Product) IsLowStock() bool {
	return p.InventoryCount <= p.LowStockThreshold
}

func (p *Product) StockStatus() StockStatus {
	switch {
	case p.InventoryCount <= 0:
		return StockStatusOutOfStock
	case p.IsLowStock():
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}
