// internal/apperrors/errors_test.go
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestInsufficientStockMessage(t *testing.T) {
	id := uuid.New()
	err := NewInsufficientStock(id, 5, 3)

	assert.Contains(t, err.Error(), "only 3 left")
	assert.Contains(t, err.Error(), id.String())
	assert.True(t, IsInsufficientStock(fmt.Errorf("order failed: %w", err)))

	// a negative reading never leaks out
	assert.Equal(t, 0, NewInsufficientStock(id, 1, -2).Available)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "noop"))

	t.Run("keeps classified errors", func(t *testing.T) {
		notFound := NewNotFound("product", "abc")
		assert.Same(t, notFound, Wrap(notFound, "load product"))

		stock := NewInsufficientStock(uuid.New(), 2, 1)
		assert.Equal(t, KindInsufficientStock, KindOf(Wrap(stock, "adjust")))
	})

	t.Run("context errors become cancelled", func(t *testing.T) {
		err := Wrap(context.DeadlineExceeded, "create order")
		assert.True(t, IsCancelled(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("duplicate keys become conflicts", func(t *testing.T) {
		assert.True(t, IsConflict(Wrap(gorm.ErrDuplicatedKey, "insert order")))
	})

	t.Run("anything else is persistence", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, "insert order")
		assert.True(t, IsPersistence(err))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "insert order: connection refused", err.Error())
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("mystery")))
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindInvalidAddress, KindOf(NewInvalidAddress(errors.New("zip"))))
	assert.Equal(t, KindPaymentReferenceMissing, KindOf(NewPaymentReferenceMissing()))
	assert.Equal(t, KindInvalidTransition, KindOf(fmt.Errorf("update: %w", NewInvalidTransition("delivered", "cancelled"))))
	assert.True(t, IsNotFound(NewNotFound("order", 1)))
}
