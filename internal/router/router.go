// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/handlers"
	"github.com/javajoker/storefront/internal/middleware"
	"github.com/javajoker/storefront/internal/services"
	"github.com/javajoker/storefront/internal/utils"
)

// Services are the engine components the HTTP surface sits on. They are
// built by the caller, which also owns their lifecycle.
type Services struct {
	Products  *services.ProductService
	Inventory *services.InventoryService
	Orders    *services.OrderService
	Bulk      *services.BulkOrderService
	Restock   *services.RestockService
	Payments  *services.PaymentService
	Storage   *services.StorageService
	Admin     *services.AdminService
}

func Initialize(db *gorm.DB, cfg *config.Config, svc Services) *gin.Engine {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, cfg.Tracing.ServiceVersion)
	productHandler := handlers.NewProductHandler(svc.Products)
	inventoryHandler := handlers.NewInventoryHandler(svc.Inventory, svc.Storage)
	orderHandler := handlers.NewOrderHandler(svc.Orders, svc.Bulk, svc.Payments)
	restockHandler := handlers.NewRestockHandler(svc.Restock, svc.Inventory)
	adminHandler := handlers.NewAdminHandler(svc.Admin)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.GeneralRateLimit())
	{
		v1.GET("/products/:id", productHandler.GetProduct)

		// Checkout routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("", orderHandler.CreateOrder)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/:id/payment", orderHandler.AttachPayment)
			orders.POST("/:id/payment-intent", orderHandler.CreatePaymentIntent)
		}

		v1.GET("/users/:id/orders", middleware.AuthRequired(), orderHandler.ListUserOrders)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.GetDashboardStats)

			admin.POST("/suppliers", productHandler.CreateSupplier)
			admin.POST("/products", productHandler.CreateProduct)
			admin.PUT("/products/:id", productHandler.UpdateProduct)

			admin.POST("/orders/bulk", middleware.BulkRateLimit(), orderHandler.ProcessBatch)
			admin.PUT("/orders/:id/status", orderHandler.UpdateStatus)

			inventory := admin.Group("/inventory")
			{
				inventory.GET("/levels", inventoryHandler.StockLevels)
				inventory.GET("/audit", inventoryHandler.Audit)
				inventory.POST("/:id/adjust", inventoryHandler.Adjust)
				inventory.GET("/:id/history", inventoryHandler.History)
			}

			admin.POST("/restock/evaluate", restockHandler.Evaluate)
		}
	}

	return r
}
