package main

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/dbtest"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/security"
)

var fastArgon = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}

func TestSeedReplacesExistingData(t *testing.T) {
	conn := dbtest.Open(t)
	stale := &models.User{Name: "old", Email: "old@example.com", PasswordHash: "x"}
	require.NoError(t, conn.Create(stale).Error)
	guest := "guest_old"
	require.NoError(t, conn.Create(&models.Cart{GuestID: &guest}).Error)

	result, err := seed(context.Background(), conn, fastArgon, logger.Nop())
	require.NoError(t, err)

	var userList []models.User
	require.NoError(t, conn.Find(&userList).Error)
	require.Len(t, userList, 1)
	assert.Equal(t, adminEmail, userList[0].Email)
	assert.Equal(t, enums.RoleAdmin, userList[0].Role)
	ok, err := security.VerifyPassword(adminPassword, userList[0].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	var productCount int64
	require.NoError(t, conn.Model(&models.Product{}).Count(&productCount).Error)
	assert.EqualValues(t, len(samples), productCount)
	assert.Equal(t, len(samples), result.Products)

	var owned int64
	require.NoError(t, conn.Model(&models.Product{}).Where("user_id = ?", result.Admin.ID).Count(&owned).Error)
	assert.Equal(t, productCount, owned)

	var carts []models.Cart
	require.NoError(t, conn.Find(&carts).Error)
	require.Len(t, carts, 1)
	require.NotNil(t, carts[0].UserID)
	assert.Equal(t, result.Admin.ID, *carts[0].UserID)
	assert.Len(t, carts[0].Products, 2)
	assert.True(t, decimal.NewFromInt(90).Equal(carts[0].TotalPrice), carts[0].TotalPrice.String())
}

func TestSeedIsRepeatable(t *testing.T) {
	conn := dbtest.Open(t)

	first, err := seed(context.Background(), conn, fastArgon, logger.Nop())
	require.NoError(t, err)
	second, err := seed(context.Background(), conn, fastArgon, logger.Nop())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, second.Admin.ID)
	assert.NotEqual(t, first.Admin.ID, second.Admin.ID)
}

func TestSampleProductsAreComplete(t *testing.T) {
	for _, p := range sampleProducts() {
		assert.NotEmpty(t, p.SKU)
		assert.NotEmpty(t, p.Sizes, p.Name)
		assert.NotEmpty(t, p.Colors, p.Name)
		assert.NotEmpty(t, p.Images.First(), p.Name)
		assert.True(t, p.Price.IsPositive(), p.Name)
	}
}
