// internal/models/order.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	BaseModel
	UserID          uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	SubtotalAmount  decimal.Decimal `json:"subtotal_amount" gorm:"type:decimal(12,2);not null"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount" gorm:"type:decimal(10,2);not null"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	ShippingAddress ShippingAddress `json:"shipping_address" gorm:"type:jsonb;not null"`
	PaymentIntentID *string         `json:"payment_intent_id,omitempty" gorm:"size:255;uniqueIndex"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is immutable once written; PriceAtTime is the unit price read
// when stock was decremented.
type OrderItem struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `json:"product_id" gorm:"type:uuid;not null;index"`
	Quantity    int             `json:"quantity" gorm:"not null;check:chk_order_items_quantity_positive,quantity > 0"`
	PriceAtTime decimal.Decimal `json:"price_at_time" gorm:"type:decimal(10,2);not null"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is price_at_time * quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ShippingAddress is stored as a JSON document on the order row.
type ShippingAddress struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Line1    string `json:"address" validate:"required,max=255"`
	Line2    string `json:"address2,omitempty" validate:"max=255"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state,omitempty" validate:"max=100"`
	ZipCode  string `json:"zip_code" validate:"required,max=20"`
	Country  string `json:"country" validate:"required,iso3166_1_alpha2"`
}

func (a ShippingAddress) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *ShippingAddress) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = ShippingAddress{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported shipping address type %T", value)
	}
}
