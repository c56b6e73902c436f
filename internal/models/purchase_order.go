// internal/models/purchase_order.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	BaseModel
	SupplierID  uuid.UUID           `json:"supplier_id" gorm:"type:uuid;not null;index"`
	Status      PurchaseOrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	TotalAmount decimal.Decimal     `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	SentAt      *time.Time          `json:"sent_at,omitempty"`

	Items []PurchaseOrderItem `json:"items,omitempty" gorm:"foreignKey:PurchaseOrderID"`
}

type PurchaseOrderItem struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id" gorm:"type:uuid;not null;index"`
	ProductID       uuid.UUID       `json:"product_id" gorm:"type:uuid;not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	UnitCost        decimal.Decimal `json:"unit_cost" gorm:"type:decimal(10,2);not null"`
}

func (i *PurchaseOrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
