// internal/services/admin_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/storefront/internal/models"
)

func TestAdminDashboardStats(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	now := time.Now()

	mug := e.product(t, productSpec{sku: "MUG-1", price: "20.00", stock: 100, threshold: 5})
	e.product(t, productSpec{sku: "TEE-1", stock: 3, threshold: 5})
	e.product(t, productSpec{sku: "CAP-1", stock: 0, threshold: 5})

	// 40.00 + 9.99 shipping
	_, err := e.orders.CreateOrder(ctx, orderRequest(uuid.New(), "pi_dash_1", line(mug, 2)))
	require.NoError(t, err)

	awaiting := orderRequest(uuid.New(), "", line(mug, 1))
	awaiting.AwaitPayment = true
	pending, err := e.orders.CreateOrder(ctx, awaiting)
	require.NoError(t, err)

	cancelled, err := e.orders.CreateOrder(ctx, orderRequest(uuid.New(), "pi_dash_3", line(mug, 1)))
	require.NoError(t, err)
	_, err = e.orders.UpdateStatus(ctx, cancelled.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	// moved into last month: 29.99 there against 49.99 this month
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	require.NoError(t, e.db.Model(&models.Order{}).
		Where("id = ?", pending.ID).
		Update("created_at", monthStart.AddDate(0, 0, -3)).Error)

	stats, err := NewAdminService(e.db).GetDashboardStats(ctx, now)
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.TotalOrders)
	assert.EqualValues(t, 1, stats.PendingOrders)
	assert.EqualValues(t, 2, stats.OrdersThisMonth)
	assert.Equal(t, "79.98", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "49.99", stats.MonthlyRevenue.StringFixed(2))
	assert.InDelta(t, 66.69, stats.RevenueGrowth, 0.001)
	assert.EqualValues(t, 3, stats.TotalProducts)
	assert.EqualValues(t, 1, stats.LowStockProducts)
	assert.EqualValues(t, 1, stats.OutOfStockProducts)
	assert.Zero(t, stats.OpenPurchaseOrders)
}
