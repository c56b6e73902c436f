// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/i18n"
	"github.com/javajoker/storefront/internal/utils"
)

// respondError renders an engine error in the response envelope. The error
// kind picks the status; the message is localized where the kind has one.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)
	kind := apperrors.KindOf(err)

	var appErr *apperrors.AppError
	message := err.Error()
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch kind {
	case apperrors.KindInsufficientStock:
		var stockErr *apperrors.InsufficientStockError
		errors.As(err, &stockErr)
		utils.ConflictResponse(c, "INSUFFICIENT_STOCK",
			i18n.T(lang, i18n.KeyInventoryInsufficientStock, stockErr.Available),
			gin.H{
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})

	case apperrors.KindConflict:
		utils.ConflictResponse(c, "CONFLICT", message, nil)

	case apperrors.KindInvalidTransition:
		utils.ConflictResponse(c, "INVALID_TRANSITION", message, nil)

	case apperrors.KindInvalidInput:
		if details := utils.GetValidationErrors(err); len(details) > 0 {
			utils.ValidationErrorResponse(c, details)
			return
		}
		utils.BadRequestResponse(c, message, nil)

	case apperrors.KindInvalidAddress:
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_ADDRESS",
			i18n.T(lang, i18n.KeyOrderInvalidAddress), utils.GetValidationErrors(err))

	case apperrors.KindPaymentReferenceMissing:
		utils.ErrorResponse(c, http.StatusBadRequest, "PAYMENT_REFERENCE_MISSING",
			i18n.T(lang, i18n.KeyOrderPaymentReferenceMissing), nil)

	case apperrors.KindNotFound:
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", message, nil)

	case apperrors.KindPersistence, apperrors.KindAborted:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Store unavailable")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "UNAVAILABLE",
			i18n.T(lang, i18n.KeyErrorUnavailable), nil)

	case apperrors.KindCancelled:
		utils.ErrorResponse(c, http.StatusRequestTimeout, "CANCELLED",
			i18n.T(lang, i18n.KeyErrorCancelled), nil)

	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		utils.InternalErrorResponse(c, "")
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authenticated user id set by AuthRequired.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

func isAdmin(c *gin.Context) bool {
	role, _ := utils.GetRoleFromContext(c)
	return role == utils.RoleAdmin
}
