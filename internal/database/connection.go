// internal/database/connection.go
package database

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, GormConfig(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool. SQLite allows a single writer.
	if cfg.Driver == "sqlite" {
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"driver":   cfg.Driver,
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("Database connection established successfully")
	return db, nil
}

// GormConfig is shared by the postgres connection and the sqlite test store.
// TranslateError maps driver errors such as unique violations onto gorm's
// sentinel errors.
func GormConfig(logLevel string) *gorm.Config {
	level := logger.Warn
	switch logLevel {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "info":
		level = logger.Info
	}

	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

// Ping reports whether the store is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Supplier{},
		&models.Product{},
		&models.InventoryAdjustment{},
		&models.Order{},
		&models.OrderItem{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_inventory_adjustments_product_created ON inventory_adjustments(product_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_inventory_adjustments_reason ON inventory_adjustments(reason)",

		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_low_stock ON products(supplier_id, inventory_count, low_stock_threshold)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)",

		// Purchase order indexes
		"CREATE INDEX IF NOT EXISTS idx_purchase_orders_supplier_status ON purchase_orders(supplier_id, status)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// SeedInitialData creates a demo supplier and catalog on an empty store. The
// opening stock goes through the ledger so the audit starts clean.
func SeedInitialData(db *gorm.DB) error {
	logrus.Info("Seeding initial data...")

	var productCount int64
	if err := db.Model(&models.Product{}).Count(&productCount).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if productCount > 0 {
		logrus.Info("Catalog already present, skipping seed")
		return nil
	}

	return WithTransaction(db, func(tx *gorm.DB) error {
		supplier := &models.Supplier{
			Name:   "Default Supplier",
			Email:  "orders@supplier.example.com",
			Status: models.SupplierStatusActive,
		}
		if err := tx.Create(supplier).Error; err != nil {
			return fmt.Errorf("failed to create supplier: %w", err)
		}

		catalog := []struct {
			sku, name   string
			price, cost string
			stock       int
		}{
			{"TSHIRT-BLK-M", "Black T-Shirt (M)", "19.99", "7.50", 40},
			{"MUG-LOGO", "Logo Mug", "12.50", "4.00", 25},
			{"HOODIE-GRY-L", "Grey Hoodie (L)", "49.00", "21.00", 12},
		}

		for _, item := range catalog {
			product := &models.Product{
				SKU:               item.sku,
				Name:              item.name,
				Price:             decimal.RequireFromString(item.price),
				CostPrice:         decimal.RequireFromString(item.cost),
				InventoryCount:    item.stock,
				LedgerVersion:     1,
				LowStockThreshold: 5,
				RestockQuantity:   50,
				SupplierID:        &supplier.ID,
			}
			if err := tx.Create(product).Error; err != nil {
				return fmt.Errorf("failed to create product %s: %w", item.sku, err)
			}

			opening := &models.InventoryAdjustment{
				ProductID: product.ID,
				Sequence:  1,
				Quantity:  item.stock,
				Reason:    models.AdjustmentReasonRestock,
				Notes:     "opening stock",
			}
			if err := tx.Create(opening).Error; err != nil {
				return fmt.Errorf("failed to record opening stock for %s: %w", item.sku, err)
			}
		}

		logrus.WithField("products", len(catalog)).Info("Initial data seeding completed")
		return nil
	})
}

// WithTransaction runs fn in a transaction, rolling back on error or panic.
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
