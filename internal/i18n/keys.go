// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAdminAccessDenied = "admin.access_denied"

	// Products
	KeyProductCreated  = "product.created"
	KeyProductUpdated  = "product.updated"
	KeyProductNotFound = "product.not_found"

	// Inventory
	KeyInventoryAdjusted          = "inventory.adjusted"
	KeyInventoryInsufficientStock = "inventory.insufficient_stock"
	KeyInventoryAuditClean        = "inventory.audit_clean"

	// Orders
	KeyOrderCreated                 = "order.created"
	KeyOrderNotFound                = "order.not_found"
	KeyOrderStatusUpdated           = "order.status_updated"
	KeyOrderInvalidTransition       = "order.invalid_transition"
	KeyOrderInvalidAddress          = "order.invalid_address"
	KeyOrderPaymentReferenceMissing = "order.payment_reference_missing"
	KeyOrderConflict                = "order.conflict"
	KeyOrderBatchPartial            = "order.batch_partial"

	// Payments
	KeyPaymentFailed = "payment.failed"

	// Restock
	KeyRestockEvaluated = "restock.evaluated"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// Errors
	KeyErrorInternal    = "error.internal"
	KeyErrorUnavailable = "error.unavailable"
	KeyErrorCancelled   = "error.cancelled"
	KeyErrorRateLimit   = "error.rate_limit"
)
