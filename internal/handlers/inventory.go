// internal/handlers/inventory.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/storefront/internal/i18n"
	"github.com/javajoker/storefront/internal/models"
	"github.com/javajoker/storefront/internal/services"
	"github.com/javajoker/storefront/internal/utils"
)

type InventoryHandler struct {
	inventoryService *services.InventoryService
	storageService   *services.StorageService
}

func NewInventoryHandler(inventoryService *services.InventoryService, storageService *services.StorageService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		storageService:   storageService,
	}
}

// POST /admin/inventory/:id/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	productID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.AdjustInventoryRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.inventoryService.Adjust(c.Request.Context(), productID, req.Quantity, req.Reason, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, result, gin.H{"message": i18n.T(lang, i18n.KeyInventoryAdjusted)})
}

// GET /admin/inventory/:id/history
func (h *InventoryHandler) History(c *gin.Context) {
	productID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	adjustments, total, err := h.inventoryService.History(c.Request.Context(), productID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(adjustments, total, params))
}

// GET /admin/inventory/levels?status=low_stock
func (h *InventoryHandler) StockLevels(c *gin.Context) {
	levels, err := h.inventoryService.StockLevels(c.Request.Context(), models.StockStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, levels)
}

// GET /admin/inventory/audit?archive=true
func (h *InventoryHandler) Audit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	discrepancies, err := h.inventoryService.Audit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	meta := gin.H{"discrepancies": len(discrepancies)}
	if len(discrepancies) == 0 {
		meta["message"] = i18n.T(lang, i18n.KeyInventoryAuditClean)
	}

	if archive, _ := strconv.ParseBool(c.Query("archive")); archive && h.storageService != nil {
		archived, err := h.storageService.ArchiveAudit(c.Request.Context(), discrepancies)
		if err != nil {
			respondError(c, err)
			return
		}
		meta["archive"] = archived
	}

	utils.SuccessResponseWithMeta(c, discrepancies, meta)
}
