// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/database"
	"github.com/javajoker/storefront/internal/i18n"
	"github.com/javajoker/storefront/internal/observability"
	"github.com/javajoker/storefront/internal/router"
	"github.com/javajoker/storefront/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up tracing")
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if cfg.Environment == "development" {
		if err := database.SeedInitialData(db); err != nil {
			logrus.WithError(err).Warn("Failed to seed development data")
		}
	}

	// Initialize i18n
	if err := i18n.Initialize(); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Collaborators
	notifier, closeNotifier := buildNotifier(cfg.Kafka)
	defer closeNotifier()
	gateway, closeGateway := buildSupplierGateway(cfg.AMQP)
	defer closeGateway()
	cooldown, closeCooldown := buildCooldown(ctx, cfg.Redis, cfg.Engine.RestockCooldown)
	defer closeCooldown()

	storageService, err := services.NewStorageService(cfg.AWS)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize audit storage")
	}

	// Engine
	notifications := services.NewNotificationService(notifier)
	restockService := services.NewRestockService(db, gateway, notifications, cooldown)
	restockQueue := services.NewRestockQueue(restockService, cfg.Engine.RestockQueueSize, cfg.Engine.RestockWorkers, cfg.Engine.RestockTimeout)
	restockQueue.Start(context.Background())

	inventoryService := services.NewInventoryService(db, restockQueue)
	orderService := services.NewOrderService(db, inventoryService, notifications, restockQueue, cfg.Engine)

	svc := router.Services{
		Products:  services.NewProductService(db, inventoryService, restockQueue),
		Inventory: inventoryService,
		Orders:    orderService,
		Bulk:      services.NewBulkOrderService(db, orderService, restockQueue, cfg.Engine.BulkWorkers),
		Restock:   restockService,
		Payments:  services.NewPaymentService(cfg.Payment),
		Storage:   storageService,
		Admin:     services.NewAdminService(db),
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(db, cfg, svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	// Requests are drained; finish queued restock work and notifications.
	restockQueue.Stop()
	notifications.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Failed to flush traces")
	}

	logrus.Info("Server exited")
}

func configureLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stdout)
}

func buildNotifier(cfg config.KafkaConfig) (services.Notifier, func()) {
	if !cfg.Enabled() {
		logrus.Info("Kafka not configured, notifications go to the log")
		return services.LogNotifier{}, func() {}
	}

	notifier := services.NewKafkaNotifier(cfg)
	logrus.WithField("topic", cfg.NotificationTopic).Info("Publishing notifications to Kafka")
	return notifier, func() {
		if err := notifier.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close Kafka writer")
		}
	}
}

func buildSupplierGateway(cfg config.AMQPConfig) (services.SupplierGateway, func()) {
	if !cfg.Enabled() {
		logrus.Info("AMQP not configured, purchase orders go to the log")
		return services.LogSupplierGateway{}, func() {}
	}

	conn, ch, err := services.SetupAMQP(cfg.URL, cfg.Exchange)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up supplier exchange")
	}
	return services.NewAMQPSupplierGateway(ch, cfg.Exchange), func() {
		ch.Close()
		conn.Close()
	}
}

func buildCooldown(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (services.Cooldown, func()) {
	if !cfg.Enabled() {
		return services.NewMemoryCooldown(ttl), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unreachable, falling back to in-process restock cooldown")
		client.Close()
		return services.NewMemoryCooldown(ttl), func() {}
	}
	return services.NewRedisCooldown(client, ttl), func() {
		client.Close()
	}
}
