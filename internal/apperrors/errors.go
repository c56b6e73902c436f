// internal/apperrors/errors.go

// Package apperrors is the error taxonomy of the order and inventory engine.
package apperrors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Kind string

const (
	KindInsufficientStock       Kind = "insufficient_stock"
	KindInvalidInput            Kind = "invalid_input"
	KindInvalidAddress          Kind = "invalid_address"
	KindPaymentReferenceMissing Kind = "payment_reference_missing"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindInvalidTransition       Kind = "invalid_transition"
	KindPersistence             Kind = "persistence"
	KindCancelled               Kind = "cancelled"
	KindAborted                 Kind = "aborted"
	KindInternal                Kind = "internal"
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InsufficientStockError names the product that could not cover a decrement.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, only %d left",
		e.ProductID, e.Requested, e.Available)
}

func NewInsufficientStock(productID uuid.UUID, requested, available int) *InsufficientStockError {
	if available < 0 {
		available = 0
	}
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

func NewInvalidInput(message string, err error) *AppError {
	return &AppError{Kind: KindInvalidInput, Message: message, Err: err}
}

func NewInvalidAddress(err error) *AppError {
	return &AppError{Kind: KindInvalidAddress, Message: "invalid shipping address", Err: err}
}

func NewPaymentReferenceMissing() *AppError {
	return &AppError{Kind: KindPaymentReferenceMissing, Message: "payment intent id is required for authorized orders"}
}

func NewNotFound(resource string, id interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func NewConflict(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

func NewInvalidTransition(from, to string) *AppError {
	return &AppError{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot move order from %s to %s", from, to)}
}

func NewPersistence(message string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: message, Err: err}
}

func NewCancelled(err error) *AppError {
	return &AppError{Kind: KindCancelled, Message: "operation cancelled", Err: err}
}

func NewAborted(message string, err error) *AppError {
	return &AppError{Kind: KindAborted, Message: message, Err: err}
}

// Wrap classifies a store error. Errors that already carry a kind pass through
// untouched, context errors become cancelled and everything else is a
// persistence failure.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &appErr), errors.As(err, &stockErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewCancelled(fmt.Errorf("%s: %w", message, err))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewConflict(message, err)
	default:
		return NewPersistence(message, err)
	}
}

// KindOf maps any error onto a kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return KindInsufficientStock
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

func IsInsufficientStock(err error) bool {
	return KindOf(err) == KindInsufficientStock
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

func IsPersistence(err error) bool {
	return KindOf(err) == KindPersistence
}

func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
