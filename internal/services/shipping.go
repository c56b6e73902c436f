// internal/services/shipping.go
package services

import (
	"github.com/shopspring/decimal"

	"github.com/javajoker/storefront/internal/config"
)

// ShippingPolicy charges a flat rate unless the subtotal is strictly above
// the free shipping threshold.
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatRate      decimal.Decimal
}

func NewShippingPolicy(cfg config.EngineConfig) ShippingPolicy {
	return ShippingPolicy{
		FreeThreshold: decimal.NewFromFloat(cfg.FreeShippingThreshold).Round(2),
		FlatRate:      decimal.NewFromFloat(cfg.FlatShippingRate).Round(2),
	}
}

func (p ShippingPolicy) ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatRate
}
