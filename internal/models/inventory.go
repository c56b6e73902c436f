// internal/models/inventory.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryAdjustment is one append-only ledger entry. Rows are never updated
// or deleted. Sequence numbers a product's entries in commit order.
type InventoryAdjustment struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID        `json:"product_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_inventory_adjustments_product_sequence,priority:1"`
	Sequence  int64            `json:"sequence" gorm:"not null;uniqueIndex:idx_inventory_adjustments_product_sequence,priority:2"`
	Quantity  int              `json:"quantity" gorm:"not null"`
	Reason    AdjustmentReason `json:"reason" gorm:"type:varchar(20);not null"`
	Notes     string           `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time        `json:"created_at" gorm:"index"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (a *InventoryAdjustment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Discrepancy is a product whose live count disagrees with its ledger.
type Discrepancy struct {
	ProductID   uuid.UUID `json:"product_id"`
	SKU         string    `json:"sku"`
	SystemCount int       `json:"system_count"`
	LedgerSum   int       `json:"ledger_sum"`
	Difference  int       `json:"difference"`
}
