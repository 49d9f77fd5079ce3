package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/dbtest"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

func TestRepositoryVersionedWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	guestID := "guest_42"
	cart := &models.Cart{GuestID: &guestID, Products: types.LineItems{{ProductID: uuid.New(), Price: decimal.NewFromInt(3), Quantity: 2}}}
	cart.Recalculate()
	require.NoError(t, repo.Create(ctx, cart))
	assert.Equal(t, 1, cart.Version)

	first, err := repo.FindByGuest(ctx, guestID)
	require.NoError(t, err)
	second, err := repo.FindByGuest(ctx, guestID)
	require.NoError(t, err)

	first.Products[0].Quantity = 5
	first.Recalculate()
	require.NoError(t, repo.UpdateVersioned(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Products[0].Quantity = 7
	err = repo.UpdateVersioned(ctx, second)
	assert.True(t, errors.Is(err, ErrStaleVersion))
	assert.True(t, errors.Is(repo.DeleteVersioned(ctx, second), ErrStaleVersion))

	stored, err := repo.FindByGuest(ctx, guestID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Products[0].Quantity)
	assert.True(t, stored.TotalPrice.Equal(decimal.NewFromInt(15)))

	require.NoError(t, repo.DeleteVersioned(ctx, stored))
	_, err = repo.FindByGuest(ctx, guestID)
	assert.True(t, db.IsNotFound(err))
}

func TestRepositoryOwnerUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, &models.Cart{UserID: &userID}))
	err := repo.Create(ctx, &models.Cart{UserID: &userID})
	require.Error(t, err)
	assert.True(t, isOwnerRace(err))

	_, err = repo.FindByOwner(ctx, Owner{})
	assert.True(t, db.IsNotFound(err))

	rows, err := repo.DeleteByUser(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)
	rows, err = repo.DeleteByUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestOwnerNilUserIsZero(t *testing.T) {
	nilID := uuid.Nil
	assert.True(t, Owner{UserID: &nilID}.IsZero())
	assert.False(t, GuestOwner("guest_1").IsZero())
	assert.Nil(t, Owner{UserID: &nilID, GuestID: "guest_1"}.userID())
}
