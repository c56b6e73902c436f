// internal/handlers/order.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/storefront/internal/i18n"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/services"
	"github.com/javajoker/storefront/internal/utils"
)

const maxBatchSize = 500

type OrderHandler struct {
	orderService   *services.OrderService
	bulkService    *services.BulkOrderService
	paymentService *services.PaymentService
}

type BulkOrderRequest struct {
	Orders []services.BulkOrderEntry `json:"orders" validate:"required,min=1"`
}

func NewOrderHandler(orderService *services.OrderService, bulkService *services.BulkOrderService, paymentService *services.PaymentService) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		bulkService:    bulkService,
		paymentService: paymentService,
	}
}

// POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = userID

	// A supplied intent that Stripe has not authorized yet turns into a
	// pending order instead of a rejection.
	if req.PaymentIntentID != "" && h.paymentService != nil {
		await, err := h.paymentService.VerifyIntent(c.Request.Context(), req.PaymentIntentID)
		if err != nil {
			respondError(c, err)
			return
		}
		req.AwaitPayment = req.AwaitPayment || await
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, order)
}

// GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, order)
}

// GET /users/:id/orders
func (h *OrderHandler) ListUserOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if targetID != userID && !isAdmin(c) {
		utils.ForbiddenResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), targetID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, params))
}

// POST /orders/:id/payment
func (h *OrderHandler) AttachPayment(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c)
	if !ok {
		return
	}

	var req services.AttachPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	updated, err := h.orderService.AttachPayment(c.Request.Context(), order.ID, req.PaymentIntentID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, updated)
}

// POST /orders/:id/payment-intent
func (h *OrderHandler) CreatePaymentIntent(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c)
	if !ok {
		return
	}

	response, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), order)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// PUT /admin/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, order, gin.H{"message": i18n.T(lang, i18n.KeyOrderStatusUpdated)})
}

// POST /admin/orders/bulk
func (h *OrderHandler) ProcessBatch(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req BulkOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}
	if len(req.Orders) > maxBatchSize {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "batch size"), gin.H{"max": maxBatchSize})
		return
	}

	result, err := h.bulkService.ProcessBatch(c.Request.Context(), req.Orders)

	var systemic *services.SystemicBatchError
	if errors.As(err, &systemic) {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "BATCH_ABORTED",
			i18n.T(lang, i18n.KeyErrorUnavailable), systemic.Result)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	meta := gin.H{
		"total":      result.Total(),
		"successful": len(result.Successful),
		"failed":     len(result.Failed),
	}
	if len(result.Failed) > 0 {
		meta["message"] = i18n.T(lang, i18n.KeyOrderBatchPartial, len(result.Failed), result.Total())
	}
	utils.SuccessResponseWithMeta(c, result, meta)
}

// loadOwnedOrder resolves :id to an order the caller may see: their own, or
// any order for admins.
func (h *OrderHandler) loadOwnedOrder(c *gin.Context) (*models.Order, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return nil, false
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	if order.UserID != userID && !isAdmin(c) {
		// other users' orders are reported as missing
		lang := utils.GetLangFromContext(c)
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", i18n.T(lang, i18n.KeyOrderNotFound), nil)
		return nil, false
	}
	return order, true
}
