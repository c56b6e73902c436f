// internal/router/router_test.go
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/database/dbtest"
	"github.com/javajoker/storefront/internal/i18n"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/services"
	"github.com/javajoker/storefront/internal/utils"
)

type RouterTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	products *services.ProductService

	customer    uuid.UUID
	customerJWT string
	adminJWT    string
	clients     atomic.Int64
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (suite *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	require.NoError(suite.T(), i18n.Initialize())
}

func (suite *RouterTestSuite) SetupTest() {
	suite.db = dbtest.New(suite.T())

	cfg := &config.Config{
		JWT: config.JWTConfig{SecretKey: "router-test-secret"},
		Engine: config.EngineConfig{
			FreeShippingThreshold: 50,
			FlatShippingRate:      9.99,
			OrderTimeout:          5 * time.Second,
			BulkWorkers:           2,
		},
		Tracing: config.TracingConfig{ServiceVersion: "test"},
	}

	notifications := services.NewNotificationService(services.LogNotifier{})
	restock := services.NewRestockService(suite.db, services.LogSupplierGateway{}, notifications, services.NewMemoryCooldown(time.Minute))
	inventory := services.NewInventoryService(suite.db, nil)
	orders := services.NewOrderService(suite.db, inventory, notifications, nil, cfg.Engine)
	storage, err := services.NewStorageService(config.AWSConfig{})
	require.NoError(suite.T(), err)

	suite.products = services.NewProductService(suite.db, inventory, nil)
	suite.router = Initialize(suite.db, cfg, Services{
		Products:  suite.products,
		Inventory: inventory,
		Orders:    orders,
		Bulk:      services.NewBulkOrderService(suite.db, orders, nil, cfg.Engine.BulkWorkers),
		Restock:   restock,
		Payments:  services.NewPaymentService(config.PaymentConfig{}),
		Storage:   storage,
		Admin:     services.NewAdminService(suite.db),
	})
	suite.T().Cleanup(notifications.Wait)

	suite.customer = uuid.New()
	suite.customerJWT = suite.token(suite.customer, utils.RoleCustomer)
	suite.adminJWT = suite.token(uuid.New(), utils.RoleAdmin)
}

func (suite *RouterTestSuite) token(userID uuid.UUID, role string) string {
	token, err := utils.GenerateJWT(userID, role, time.Hour)
	require.NoError(suite.T(), err)
	return token
}

// do sends a request from a fresh client address so the shared rate limiter
// never trips across tests.
func (suite *RouterTestSuite) do(method, path, token, lang string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	n := suite.clients.Add(1)
	req.RemoteAddr = fmt.Sprintf("10.1.%d.%d:4000", n/250, n%250+1)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (suite *RouterTestSuite) product(sku string, stock int) *models.Product {
	p, err := suite.products.CreateProduct(context.Background(), &services.CreateProductRequest{
		SKU:          sku,
		Name:         "Product " + sku,
		Price:        decimal.RequireFromString("20.00"),
		CostPrice:    decimal.RequireFromString("8.00"),
		InitialStock: stock,
	})
	require.NoError(suite.T(), err)
	return p
}

func (suite *RouterTestSuite) checkout(p *models.Product, qty int, intent string) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product_id": p.ID, "quantity": qty}},
		"shipping_address": map[string]any{
			"full_name": "Grace Hopper",
			"address":   "1 Compiler Way",
			"city":      "Arlington",
			"zip_code":  "22201",
			"country":   "US",
		},
		"payment_intent_id": intent,
		"payment_method":    "stripe",
	}
}

func (suite *RouterTestSuite) TestHealthAndMetrics() {
	w, _ := suite.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	w, _ = suite.do(http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "storefront_http_requests_total")
}

func (suite *RouterTestSuite) TestCheckoutRequiresAuth() {
	p := suite.product("CAP-1", 5)
	w, _ := suite.do(http.MethodPost, "/v1/orders", "", "", suite.checkout(p, 1, "pi_1"))
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestCheckoutCreatesOrder() {
	p := suite.product("CAP-1", 5)

	w, env := suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "", suite.checkout(p, 3, "pi_checkout"))
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(suite.T(), json.Unmarshal(env.Data, &order))
	assert.Equal(suite.T(), suite.customer, order.UserID)
	assert.Equal(suite.T(), models.OrderStatusProcessing, order.Status)
	assert.Equal(suite.T(), "60.00", order.TotalAmount.StringFixed(2))

	w, _ = suite.do(http.MethodGet, "/v1/orders/"+order.ID.String(), suite.customerJWT, "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	stranger := suite.token(uuid.New(), utils.RoleCustomer)
	w, _ = suite.do(http.MethodGet, "/v1/orders/"+order.ID.String(), stranger, "", nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/orders/"+order.ID.String(), suite.adminJWT, "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/users/"+suite.customer.String()+"/orders", suite.customerJWT, "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "1", w.Header().Get("X-Total-Count"))
}

func (suite *RouterTestSuite) TestInsufficientStockMessage() {
	p := suite.product("CAP-1", 2)

	w, env := suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "", suite.checkout(p, 3, "pi_short"))
	require.Equal(suite.T(), http.StatusConflict, w.Code)
	require.NotNil(suite.T(), env.Error)
	assert.Equal(suite.T(), "INSUFFICIENT_STOCK", env.Error.Code)
	assert.Equal(suite.T(), "Only 2 left in stock", env.Error.Message)

	var details struct {
		ProductID uuid.UUID `json:"product_id"`
		Requested int       `json:"requested"`
		Available int       `json:"available"`
	}
	require.NoError(suite.T(), json.Unmarshal(env.Error.Details, &details))
	assert.Equal(suite.T(), p.ID, details.ProductID)
	assert.Equal(suite.T(), 3, details.Requested)
	assert.Equal(suite.T(), 2, details.Available)

	w, env = suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "zh-TW,zh;q=0.9", suite.checkout(p, 3, "pi_short"))
	require.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "庫存僅剩 2 件", env.Error.Message)
}

func (suite *RouterTestSuite) TestCheckoutRejections() {
	p := suite.product("CAP-1", 5)

	w, env := suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "", suite.checkout(p, 1, ""))
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "PAYMENT_REFERENCE_MISSING", env.Error.Code)

	body := suite.checkout(p, 1, "pi_addr")
	body["shipping_address"].(map[string]any)["country"] = "Narnia"
	w, env = suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "", body)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "INVALID_ADDRESS", env.Error.Code)

	w, env = suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "", suite.checkout(p, 0, "pi_zero"))
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", env.Error.Code)
}

func (suite *RouterTestSuite) TestAdminRoutesRequireAdminRole() {
	w, _ := suite.do(http.MethodGet, "/v1/admin/inventory/levels", suite.customerJWT, "", nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/admin/inventory/levels", suite.adminJWT, "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestAdminInventoryFlow() {
	w, env := suite.do(http.MethodPost, "/v1/admin/products", suite.adminJWT, "", map[string]any{
		"sku":                 "BAG-1",
		"name":                "Tote bag",
		"price":               "15.00",
		"cost_price":          "5.00",
		"initial_stock":       4,
		"low_stock_threshold": 2,
		"restock_quantity":    10,
	})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Product models.Product `json:"product"`
	}
	require.NoError(suite.T(), json.Unmarshal(env.Data, &created))
	id := created.Product.ID.String()

	w, _ = suite.do(http.MethodPost, "/v1/admin/inventory/"+id+"/adjust", suite.adminJWT, "", map[string]any{
		"quantity": -5, "reason": "damage",
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w, _ = suite.do(http.MethodPost, "/v1/admin/inventory/"+id+"/adjust", suite.adminJWT, "", map[string]any{
		"quantity": -3, "reason": "damage", "notes": "water leak",
	})
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())

	w, _ = suite.do(http.MethodGet, "/v1/admin/inventory/"+id+"/history", suite.adminJWT, "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "2", w.Header().Get("X-Total-Count"))

	w, env = suite.do(http.MethodGet, "/v1/admin/inventory/audit", suite.adminJWT, "", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.EqualValues(suite.T(), 0, env.Meta["discrepancies"])

	w, env = suite.do(http.MethodPost, "/v1/admin/restock/evaluate", suite.adminJWT, "", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(suite.T(), 1, env.Meta["candidates"])
	// no supplier on the product, so nothing is ordered
	assert.EqualValues(suite.T(), 0, env.Meta["requests"])

	w, env = suite.do(http.MethodGet, "/v1/admin/dashboard", suite.adminJWT, "", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	var dashboard struct {
		Stats services.AdminDashboardStats `json:"stats"`
	}
	require.NoError(suite.T(), json.Unmarshal(env.Data, &dashboard))
	assert.EqualValues(suite.T(), 1, dashboard.Stats.TotalProducts)
	assert.EqualValues(suite.T(), 1, dashboard.Stats.LowStockProducts)
}

func (suite *RouterTestSuite) TestBulkOrders() {
	p := suite.product("CAP-1", 3)

	entries := make([]map[string]any, 0, 3)
	for i, qty := range []int{1, 10, 1} {
		order := suite.checkout(p, qty, fmt.Sprintf("pi_bulk_%d", i))
		order["user_id"] = uuid.New()
		entries = append(entries, map[string]any{"ref": fmt.Sprintf("row-%d", i+1), "order": order})
	}

	w, env := suite.do(http.MethodPost, "/v1/admin/orders/bulk", suite.adminJWT, "", map[string]any{"orders": entries})
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())

	var result services.BatchResult
	require.NoError(suite.T(), json.Unmarshal(env.Data, &result))
	assert.Len(suite.T(), result.Successful, 2)
	require.Len(suite.T(), result.Failed, 1)
	assert.Equal(suite.T(), "row-2", result.Failed[0].Ref)
	assert.Equal(suite.T(), 10, result.Failed[0].Requested)
	assert.EqualValues(suite.T(), 1, env.Meta["failed"])
}

func (suite *RouterTestSuite) TestOrderStatusUpdate() {
	p := suite.product("CAP-1", 5)
	w, env := suite.do(http.MethodPost, "/v1/orders", suite.customerJWT, "", suite.checkout(p, 1, "pi_status"))
	require.Equal(suite.T(), http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(suite.T(), json.Unmarshal(env.Data, &order))
	path := "/v1/admin/orders/" + order.ID.String() + "/status"

	w, env = suite.do(http.MethodPut, path, suite.adminJWT, "", map[string]any{"status": "delivered"})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "INVALID_TRANSITION", env.Error.Code)

	w, _ = suite.do(http.MethodPut, path, suite.adminJWT, "", map[string]any{"status": "cancelled"})
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var stock models.Product
	require.NoError(suite.T(), suite.db.First(&stock, "id = ?", p.ID).Error)
	assert.Equal(suite.T(), 5, stock.InventoryCount)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
