// internal/database/connection_test.go
package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/database"
	"github.com/javajoker/storefront/internal/database/dbtest"
	"github.com/javajoker/storefront/internal/models"
)

func TestSeedInitialDataKeepsLedgerInStep(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, database.SeedInitialData(db))
	// second run is a no-op
	require.NoError(t, database.SeedInitialData(db))

	var products []models.Product
	require.NoError(t, db.Find(&products).Error)
	require.Len(t, products, 3)

	for _, p := range products {
		var sum int
		require.NoError(t, db.Model(&models.InventoryAdjustment{}).
			Where("product_id = ?", p.ID).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&sum).Error)
		assert.Equal(t, p.InventoryCount, sum, p.SKU)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	db := dbtest.New(t)
	boom := errors.New("boom")

	err := database.WithTransaction(db, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&models.Supplier{Name: "Acme"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Supplier{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db := dbtest.New(t)

	assert.Panics(t, func() {
		_ = database.WithTransaction(db, func(tx *gorm.DB) error {
			tx.Create(&models.Supplier{Name: "Acme"})
			panic("unexpected")
		})
	})

	var count int64
	require.NoError(t, db.Model(&models.Supplier{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPing(t *testing.T) {
	db := dbtest.New(t)
	assert.NoError(t, database.Ping(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.Error(t, database.Ping(context.Background(), db))
}
