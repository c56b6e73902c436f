// internal/services/admin_service.go
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/models"
)

type AdminService struct {
	db *gorm.DB
}

type AdminDashboardStats struct {
	TotalOrders        int64           `json:"total_orders"`
	PendingOrders      int64           `json:"pending_orders"`
	OrdersThisMonth    int64           `json:"orders_this_month"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue     decimal.Decimal `json:"monthly_revenue"`
	RevenueGrowth      float64         `json:"revenue_growth"`
	TotalProducts      int64           `json:"total_products"`
	LowStockProducts   int64           `json:"low_stock_products"`
	OutOfStockProducts int64           `json:"out_of_stock_products"`
	OpenPurchaseOrders int64           `json:"open_purchase_orders"`
	ActiveSuppliers    int64           `json:"active_suppliers"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// GetDashboardStats summarises orders, revenue and stock health. Cancelled
// orders never count towards revenue.
func (s *AdminService) GetDashboardStats(ctx context.Context, now time.Time) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	db := s.db.WithContext(ctx)

	// Order statistics
	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, apperrors.NewPersistence("count orders", err)
	}
	if err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPending).
		Count(&stats.PendingOrders).Error; err != nil {
		return nil, apperrors.NewPersistence("count pending orders", err)
	}
	if err := db.Model(&models.Order{}).
		Where("created_at >= ?", monthStart).
		Count(&stats.OrdersThisMonth).Error; err != nil {
		return nil, apperrors.NewPersistence("count monthly orders", err)
	}

	// Revenue statistics
	var err error
	if stats.TotalRevenue, err = s.revenue(db, time.Time{}, time.Time{}); err != nil {
		return nil, err
	}
	if stats.MonthlyRevenue, err = s.revenue(db, monthStart, time.Time{}); err != nil {
		return nil, err
	}
	lastMonthRevenue, err := s.revenue(db, lastMonthStart, monthStart)
	if err != nil {
		return nil, err
	}
	if lastMonthRevenue.IsPositive() {
		stats.RevenueGrowth = stats.MonthlyRevenue.Sub(lastMonthRevenue).
			Div(lastMonthRevenue).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}

	// Stock statistics
	if err := db.Model(&models.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, apperrors.NewPersistence("count products", err)
	}
	if err := db.Model(&models.Product{}).
		Where("inventory_count > 0 AND inventory_count <= low_stock_threshold").
		Count(&stats.LowStockProducts).Error; err != nil {
		return nil, apperrors.NewPersistence("count low stock products", err)
	}
	if err := db.Model(&models.Product{}).
		Where("inventory_count <= 0").
		Count(&stats.OutOfStockProducts).Error; err != nil {
		return nil, apperrors.NewPersistence("count out of stock products", err)
	}

	// Supply statistics
	if err := db.Model(&models.PurchaseOrder{}).
		Where("status IN ?", []models.PurchaseOrderStatus{
			models.PurchaseOrderStatusDraft,
			models.PurchaseOrderStatusSent,
			models.PurchaseOrderStatusConfirmed,
		}).
		Count(&stats.OpenPurchaseOrders).Error; err != nil {
		return nil, apperrors.NewPersistence("count purchase orders", err)
	}
	if err := db.Model(&models.Supplier{}).
		Where("status = ?", models.SupplierStatusActive).
		Count(&stats.ActiveSuppliers).Error; err != nil {
		return nil, apperrors.NewPersistence("count suppliers", err)
	}

	return stats, nil
}

// revenue sums order totals created in [from, to); zero bounds are open.
func (s *AdminService) revenue(db *gorm.DB, from, to time.Time) (decimal.Decimal, error) {
	query := db.Model(&models.Order{}).Where("status <> ?", models.OrderStatusCancelled)
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to)
	}

	var totals []decimal.Decimal
	if err := query.Pluck("total_amount", &totals).Error; err != nil {
		return decimal.Zero, apperrors.NewPersistence("sum revenue", err)
	}

	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}
