// internal/services/services_test.go
package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/database/dbtest"
	"github.com/javajoker/storefront/internal/models"
)

var testEngineConfig = config.EngineConfig{
	FreeShippingThreshold: 50,
	FlatShippingRate:      9.99,
	OrderTimeout:          5 * time.Second,
	BulkWorkers:           4,
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls [][]uuid.UUID
}

func (s *recordingScheduler) Schedule(ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]uuid.UUID(nil), ids...))
}

func (s *recordingScheduler) Calls() [][]uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]uuid.UUID(nil), s.calls...)
}

func (s *recordingScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

type notification struct {
	event  string
	id     uuid.UUID
	status models.OrderStatus
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
	err    error
}

func (n *fakeNotifier) record(e notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *fakeNotifier) NotifyOrderCreated(_ context.Context, orderID uuid.UUID) error {
	return n.record(notification{event: EventOrderCreated, id: orderID})
}

func (n *fakeNotifier) NotifyLowStock(_ context.Context, productID uuid.UUID) error {
	return n.record(notification{event: EventLowStock, id: productID})
}

func (n *fakeNotifier) NotifyOrderStatusChanged(_ context.Context, orderID uuid.UUID, status models.OrderStatus) error {
	return n.record(notification{event: EventOrderStatusChanged, id: orderID, status: status})
}

func (n *fakeNotifier) Events(event string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []PurchaseOrderRequest
	err      error
}

func (g *fakeGateway) SubmitPurchaseOrder(_ context.Context, req PurchaseOrderRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.err
}

func (g *fakeGateway) Requests() []PurchaseOrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PurchaseOrderRequest(nil), g.requests...)
}

// engine wires the services against a throwaway store with recording fakes
// for everything outside the process.
type engine struct {
	db            *gorm.DB
	scheduler     *recordingScheduler
	notifier      *fakeNotifier
	notifications *NotificationService
	inventory     *InventoryService
	products      *ProductService
	orders        *OrderService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineOn(t, dbtest.New(t), testEngineConfig)
}

func newEngineOn(t *testing.T, db *gorm.DB, cfg config.EngineConfig) *engine {
	t.Helper()

	scheduler := &recordingScheduler{}
	notifier := &fakeNotifier{}
	notifications := NewNotificationService(notifier)
	inventory := NewInventoryService(db, scheduler)

	return &engine{
		db:            db,
		scheduler:     scheduler,
		notifier:      notifier,
		notifications: notifications,
		inventory:     inventory,
		products:      NewProductService(db, inventory, scheduler),
		orders:        NewOrderService(db, inventory, notifications, scheduler, cfg),
	}
}

func (e *engine) supplier(t *testing.T, name string) *models.Supplier {
	t.Helper()
	s, err := e.products.CreateSupplier(context.Background(), &CreateSupplierRequest{Name: name})
	require.NoError(t, err)
	return s
}

type productSpec struct {
	sku       string
	price     string
	stock     int
	threshold int
	supplier  *models.Supplier
}

func (e *engine) product(t *testing.T, spec productSpec) *models.Product {
	t.Helper()

	price := spec.price
	if price == "" {
		price = "10.00"
	}
	req := &CreateProductRequest{
		SKU:               spec.sku,
		Name:              "Product " + spec.sku,
		Price:             decimal.RequireFromString(price),
		CostPrice:         decimal.RequireFromString("4.00"),
		InitialStock:      spec.stock,
		LowStockThreshold: spec.threshold,
		RestockQuantity:   20,
	}
	if spec.supplier != nil {
		req.SupplierID = &spec.supplier.ID
	}

	p, err := e.products.CreateProduct(context.Background(), req)
	require.NoError(t, err)
	e.scheduler.Reset()
	return p
}

func (e *engine) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, "id = ?", productID).Error)
	return p.InventoryCount
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FullName: "Ada Lovelace",
		Line1:    "12 Analytical Row",
		City:     "London",
		ZipCode:  "N1 9GU",
		Country:  "GB",
	}
}

func orderRequest(userID uuid.UUID, intent string, lines ...OrderLine) *CreateOrderRequest {
	return &CreateOrderRequest{
		UserID:          userID,
		Items:           lines,
		ShippingAddress: testAddress(),
		PaymentIntentID: intent,
		PaymentMethod:   models.PaymentMethodStripe,
	}
}

func line(p *models.Product, qty int) OrderLine {
	return OrderLine{ProductID: p.ID, Quantity: qty}
}
