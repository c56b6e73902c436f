// internal/handlers/restock.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/storefront/internal/i18n"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/services"
	"github.com/javajoker/storefront/internal/utils"
)

type RestockHandler struct {
	restockService   *services.RestockService
	inventoryService *services.InventoryService
}

type EvaluateRestockRequest struct {
	// Empty means every product currently at or below its threshold.
	ProductIDs []uuid.UUID `json:"product_ids"`
}

func NewRestockHandler(restockService *services.RestockService, inventoryService *services.InventoryService) *RestockHandler {
	return &RestockHandler{
		restockService:   restockService,
		inventoryService: inventoryService,
	}
}

// POST /admin/restock/evaluate
func (h *RestockHandler) Evaluate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	ctx := c.Request.Context()

	var req EvaluateRestockRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	ids := req.ProductIDs
	if len(ids) == 0 {
		for _, status := range []models.StockStatus{models.StockStatusOutOfStock, models.StockStatusLowStock} {
			levels, err := h.inventoryService.StockLevels(ctx, status)
			if err != nil {
				respondError(c, err)
				return
			}
			for _, level := range levels {
				ids = append(ids, level.ProductID)
			}
		}
	}

	requests, err := h.restockService.EvaluateAndGroup(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, requests, gin.H{
		"candidates": len(ids),
		"requests":   len(requests),
		"message":    i18n.T(lang, i18n.KeyRestockEvaluated),
	})
}
