// internal/services/bulk_order_service_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/models"
)

type BulkOrderServiceTestSuite struct {
	suite.Suite
	engine *engine
	poster *models.Product
}

func (suite *BulkOrderServiceTestSuite) SetupTest() {
	suite.engine = newEngine(suite.T())
	suite.poster = suite.engine.product(suite.T(), productSpec{sku: "POSTER-1", price: "5.00", stock: 100, threshold: 10})
}

func (suite *BulkOrderServiceTestSuite) bulk(workers int) *BulkOrderService {
	return NewBulkOrderService(suite.engine.db, suite.engine.orders, suite.engine.scheduler, workers)
}

func (suite *BulkOrderServiceTestSuite) entries(quantities ...int) []BulkOrderEntry {
	entries := make([]BulkOrderEntry, 0, len(quantities))
	for i, qty := range quantities {
		entries = append(entries, BulkOrderEntry{
			Order: *orderRequest(uuid.New(), fmt.Sprintf("pi_bulk_%d", i), line(suite.poster, qty)),
		})
	}
	return entries
}

func (suite *BulkOrderServiceTestSuite) TestOversizedEntryFailsAlone() {
	result, err := suite.bulk(1).ProcessBatch(context.Background(), suite.entries(1, 1, 1000, 1, 1))
	require.NoError(suite.T(), err)

	require.Len(suite.T(), result.Successful, 4)
	require.Len(suite.T(), result.Failed, 1)
	assert.Equal(suite.T(), 5, result.Total())

	refs := make([]string, 0, len(result.Successful))
	for _, s := range result.Successful {
		refs = append(refs, s.Ref)
		assert.NotEqual(suite.T(), uuid.Nil, s.OrderID)
	}
	assert.Equal(suite.T(), []string{"#1", "#2", "#4", "#5"}, refs)

	failure := result.Failed[0]
	assert.Equal(suite.T(), "#3", failure.Ref)
	assert.Equal(suite.T(), apperrors.KindInsufficientStock, failure.ErrorKind)
	require.NotNil(suite.T(), failure.ProductID)
	assert.Equal(suite.T(), suite.poster.ID, *failure.ProductID)
	assert.Equal(suite.T(), 1000, failure.Requested)
	assert.Equal(suite.T(), 98, failure.Available)
	assert.True(suite.T(), apperrors.IsInsufficientStock(failure.Unwrap()))

	var partial *PartialBatchFailure
	require.True(suite.T(), errors.As(result.Err(), &partial))
	assert.Equal(suite.T(), "1 of 5 orders failed", partial.Error())

	assert.Equal(suite.T(), 96, suite.engine.stockOf(suite.T(), suite.poster.ID))
	assert.Equal(suite.T(), [][]uuid.UUID{{suite.poster.ID}}, suite.engine.scheduler.Calls())
}

func (suite *BulkOrderServiceTestSuite) TestConcurrentBatchKeepsStockConsistent() {
	quantities := make([]int, 20)
	for i := range quantities {
		quantities[i] = 7
	}

	result, err := suite.bulk(4).ProcessBatch(context.Background(), suite.entries(quantities...))
	require.NoError(suite.T(), err)

	// 100 units cover 14 orders of 7
	assert.Len(suite.T(), result.Successful, 14)
	assert.Len(suite.T(), result.Failed, 6)
	for _, f := range result.Failed {
		assert.Equal(suite.T(), apperrors.KindInsufficientStock, f.ErrorKind)
	}
	assert.Equal(suite.T(), 2, suite.engine.stockOf(suite.T(), suite.poster.ID))

	discrepancies, err := suite.engine.inventory.Audit(context.Background())
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), discrepancies)
	assert.Len(suite.T(), suite.engine.scheduler.Calls(), 1)
}

func (suite *BulkOrderServiceTestSuite) TestCallerCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := suite.entries(1, 1, 1)
	entries[1].Ref = "gift-box"

	result, err := suite.bulk(2).ProcessBatch(ctx, entries)
	require.NoError(suite.T(), err)

	assert.Empty(suite.T(), result.Successful)
	require.Len(suite.T(), result.Failed, 3)
	assert.Equal(suite.T(), "gift-box", result.Failed[1].Ref)
	for _, f := range result.Failed {
		assert.Equal(suite.T(), apperrors.KindCancelled, f.ErrorKind)
		assert.Nil(suite.T(), f.Unwrap())
	}
	assert.Equal(suite.T(), 100, suite.engine.stockOf(suite.T(), suite.poster.ID))
	assert.Empty(suite.T(), suite.engine.scheduler.Calls())
}

func (suite *BulkOrderServiceTestSuite) TestStoreOutageAbortsBatch() {
	sqlDB, err := suite.engine.db.DB()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), sqlDB.Close())

	result, err := suite.bulk(1).ProcessBatch(context.Background(), suite.entries(1, 1, 1))
	require.Error(suite.T(), err)

	var systemic *SystemicBatchError
	require.True(suite.T(), errors.As(err, &systemic))
	assert.Same(suite.T(), result, systemic.Result)

	require.Len(suite.T(), result.Failed, 3)
	assert.Equal(suite.T(), apperrors.KindPersistence, result.Failed[0].ErrorKind)
	assert.Equal(suite.T(), apperrors.KindAborted, result.Failed[1].ErrorKind)
	assert.Equal(suite.T(), apperrors.KindAborted, result.Failed[2].ErrorKind)
}

func (suite *BulkOrderServiceTestSuite) TestEmptyBatch() {
	result, err := suite.bulk(2).ProcessBatch(context.Background(), nil)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), result.Total())
	assert.NoError(suite.T(), result.Err())
}

func TestBulkOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BulkOrderServiceTestSuite))
}
